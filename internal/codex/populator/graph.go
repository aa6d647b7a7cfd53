package populator

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"fortio.org/safecast"

	"tephra/internal/atom"
	"tephra/internal/codex"
)

type NodeID uint32

// DependencyGraph groups class-likes into levels by the length of their
// longest dependency chain inside the graph. Level 0 has no in-graph
// dependencies; every class sits strictly above the classes it depends on,
// except where a cycle makes that impossible.
type DependencyGraph struct {
	names    []atom.Atom // folded, ordered by name
	ids      map[atom.Atom]NodeID
	deps     [][]NodeID // deps[n] = классы, от которых зависит n
	users    [][]NodeID // обратные рёбра
	selfLoop []bool
	depth    []int // -1 пока не посчитано
	visiting []bool
}

func toNode(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("class node overflow: %w", err))
	}
	return id
}

// Dependencies lists the folded names meta depends on: parent class, used
// traits, interfaces, required classes and the sources of imported aliases.
func Dependencies(cb *codex.CodebaseMetadata, meta *codex.ClassLikeMetadata) []atom.Atom {
	in := cb.Interner
	var out []atom.Atom
	add := func(name atom.Atom) {
		if name == atom.Empty {
			return
		}
		key := in.Lower(name)
		if !slices.Contains(out, key) {
			out = append(out, key)
		}
	}
	add(meta.DirectParentClass)
	for _, t := range meta.UsedTraits {
		add(t)
	}
	for _, i := range meta.DirectParentInterfaces {
		add(i)
	}
	for _, r := range meta.RequireExtends {
		add(r)
	}
	for _, r := range meta.RequireImplements {
		add(r)
	}
	for _, name := range sortedAtoms(meta.ImportedTypeAliases) {
		add(meta.ImportedTypeAliases[name].From)
	}
	return out
}

// BuildDependencyGraph builds the graph over classes (folded names). Names
// missing from cb are ignored, as are edges leaving the set.
func BuildDependencyGraph(cb *codex.CodebaseMetadata, classes atom.Set) *DependencyGraph {
	in := cb.Interner
	names := make([]atom.Atom, 0, classes.Len())
	for key := range classes.All() {
		if cb.ClassExists(key) {
			names = append(names, key)
		}
	}
	slices.SortFunc(names, func(a, b atom.Atom) int {
		return strings.Compare(in.String(a), in.String(b))
	})

	n := len(names)
	g := &DependencyGraph{
		names:    names,
		ids:      make(map[atom.Atom]NodeID, n),
		deps:     make([][]NodeID, n),
		users:    make([][]NodeID, n),
		selfLoop: make([]bool, n),
		depth:    make([]int, n),
		visiting: make([]bool, n),
	}
	for i, key := range names {
		g.ids[key] = toNode(i)
		g.depth[i] = -1
	}
	for i, key := range names {
		for _, dep := range Dependencies(cb, cb.ClassLikes[key]) {
			to, ok := g.ids[dep]
			if !ok {
				continue
			}
			if int(to) == i {
				g.selfLoop[i] = true
				continue
			}
			g.deps[i] = append(g.deps[i], to)
			g.users[to] = append(g.users[to], toNode(i))
		}
		slices.Sort(g.deps[i])
	}
	for i := range names {
		g.depthOf(toNode(i))
	}
	return g
}

func (g *DependencyGraph) Len() int { return len(g.names) }

// ComputeDepth returns the level of the class with the folded name key, or
// -1 when the class is not part of the graph. A class reached again while
// its own depth is being computed counts as depth 0, so cycles terminate.
func (g *DependencyGraph) ComputeDepth(key atom.Atom) int {
	id, ok := g.ids[key]
	if !ok {
		return -1
	}
	return g.depthOf(id)
}

func (g *DependencyGraph) depthOf(n NodeID) int {
	if d := g.depth[n]; d >= 0 {
		return d
	}
	if g.visiting[n] {
		return 0
	}
	g.visiting[n] = true
	d := 0
	for _, dep := range g.deps[n] {
		d = max(d, g.depthOf(dep)+1)
	}
	g.visiting[n] = false
	g.depth[n] = d
	return d
}

// Levels returns the classes grouped by depth, level 0 first. Classes in a
// level are ordered by name.
func (g *DependencyGraph) Levels() [][]atom.Atom {
	var levels [][]atom.Atom
	for i, key := range g.names {
		d := g.depth[i]
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], key)
	}
	return levels
}

// IterLevels yields (level, classes) in ascending order.
func (g *DependencyGraph) IterLevels() iter.Seq2[int, []atom.Atom] {
	return func(yield func(int, []atom.Atom) bool) {
		for i, level := range g.Levels() {
			if !yield(i, level) {
				return
			}
		}
	}
}

// Cycles returns the classes that sit on a dependency cycle, ordered by
// name. Kahn's algorithm leaves every class that depends on a cycle
// unvisited; peeling that residue from the other side drops the classes
// that merely hang below a cycle.
func (g *DependencyGraph) Cycles() []atom.Atom {
	n := len(g.names)
	pending := make([]int, n)
	queue := make([]NodeID, 0, n)
	for i := range n {
		pending[i] = len(g.deps[i])
		if pending[i] == 0 {
			queue = append(queue, toNode(i))
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, u := range g.users[id] {
			pending[u]--
			if pending[u] == 0 {
				queue = append(queue, u)
			}
		}
	}

	residue := make([]bool, n)
	downstream := make([]int, n) // users still in the residue
	for i := range n {
		residue[i] = pending[i] > 0
	}
	for i := range n {
		if !residue[i] {
			continue
		}
		for _, u := range g.users[i] {
			if residue[u] {
				downstream[i]++
			}
		}
		if downstream[i] == 0 {
			queue = append(queue, toNode(i))
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		residue[id] = false
		for _, dep := range g.deps[id] {
			if !residue[dep] {
				continue
			}
			downstream[dep]--
			if downstream[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	var out []atom.Atom
	for i, key := range g.names {
		if residue[i] || g.selfLoop[i] {
			out = append(out, key)
		}
	}
	return out
}
