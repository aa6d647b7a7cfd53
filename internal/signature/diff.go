package signature

import (
	"slices"

	"tephra/internal/atom"
)

// Diff is the outcome of comparing two file signatures.
type Diff struct {
	Keep    []Key
	Changed []Key
}

type editKind uint8

const (
	editMatch editKind = iota
	editDelete
	editInsert
)

type edit struct {
	kind editKind
	old  int
	new  int
}

// Compare diffs two signatures of the same path. Either side may be nil:
// every node of a missing side counts as added or removed.
func Compare(old, cur *FileSignature) Diff {
	var d Diff
	var oldNodes, newNodes []DefSignatureNode
	if old != nil {
		oldNodes = old.Nodes
	}
	if cur != nil {
		newNodes = cur.Nodes
	}
	d.diffTop(oldNodes, newNodes)
	return d
}

func sameDef(a, b DefSignatureNode) bool {
	return a.Kind == b.Kind && a.Name == b.Name
}

func (d *Diff) diffTop(old, cur []DefSignatureNode) {
	for _, e := range myers(len(old), len(cur), func(i, j int) bool { return sameDef(old[i], cur[j]) }) {
		switch e.kind {
		case editDelete:
			d.changeTree(old[e.old])
		case editInsert:
			d.changeTree(cur[e.new])
		case editMatch:
			o, n := old[e.old], cur[e.new]
			switch {
			case o.Hash != n.Hash:
				d.changeTree(o)
				d.changeTree(n)
			case o.Kind == NodeClass:
				d.Keep = append(d.Keep, Key{Symbol: n.Name})
				d.diffMembers(n.Name, o.Children, n.Children)
			default:
				d.keepTree(n)
			}
		}
	}
}

func (d *Diff) diffMembers(class atom.Atom, old, cur []DefSignatureNode) {
	for _, e := range myers(len(old), len(cur), func(i, j int) bool { return sameDef(old[i], cur[j]) }) {
		switch e.kind {
		case editDelete:
			d.Changed = append(d.Changed, Key{Symbol: class, Member: old[e.old].Name})
		case editInsert:
			d.Changed = append(d.Changed, Key{Symbol: class, Member: cur[e.new].Name})
		case editMatch:
			k := Key{Symbol: class, Member: cur[e.new].Name}
			if old[e.old].Hash == cur[e.new].Hash {
				d.Keep = append(d.Keep, k)
			} else {
				d.Changed = append(d.Changed, k)
			}
		}
	}
}

func (d *Diff) changeTree(n DefSignatureNode) {
	d.Changed = append(d.Changed, Key{Symbol: n.Name})
	for _, c := range n.Children {
		d.Changed = append(d.Changed, Key{Symbol: n.Name, Member: c.Name})
	}
}

func (d *Diff) keepTree(n DefSignatureNode) {
	d.Keep = append(d.Keep, Key{Symbol: n.Name})
	for _, c := range n.Children {
		d.Keep = append(d.Keep, Key{Symbol: n.Name, Member: c.Name})
	}
}

// myers returns the shortest edit script turning a sequence of length n
// into one of length m, in sequence order.
func myers(n, m int, eq func(i, j int) bool) []edit {
	total := n + m
	if total == 0 {
		return nil
	}
	off := total
	v := make([]int, 2*total+2)
	trace := make([][]int, 0, 8)

	for d := 0; d <= total; d++ {
		trace = append(trace, slices.Clone(v))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k
			for x < n && y < m && eq(x, y) {
				x++
				y++
			}
			v[off+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m, off)
			}
		}
	}
	return nil
}

func backtrack(trace [][]int, n, m, off int) []edit {
	out := make([]edit, 0, n+m)
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[off+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			out = append(out, edit{kind: editMatch, old: x - 1, new: y - 1})
			x--
			y--
		}
		if d > 0 {
			if x == prevX {
				out = append(out, edit{kind: editInsert, old: x, new: y - 1})
			} else {
				out = append(out, edit{kind: editDelete, old: x - 1, new: y})
			}
		}
		x, y = prevX, prevY
	}
	slices.Reverse(out)
	return out
}
