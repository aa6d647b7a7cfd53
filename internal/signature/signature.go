package signature

import (
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"tephra/internal/atom"
	"tephra/internal/source"
	"tephra/internal/syntax"
)

type NodeKind uint8

const (
	NodeFunction NodeKind = iota + 1
	NodeConstant
	NodeClass
	NodeMethod
	NodeProperty
	NodeClassConstant
	NodeEnumCase
)

func (k NodeKind) String() string {
	switch k {
	case NodeFunction:
		return "function"
	case NodeConstant:
		return "constant"
	case NodeClass:
		return "class"
	case NodeMethod:
		return "method"
	case NodeProperty:
		return "property"
	case NodeClassConstant:
		return "class-constant"
	case NodeEnumCase:
		return "enum-case"
	}
	return "node(" + strconv.Itoa(int(k)) + ")"
}

// DefSignatureNode fingerprints one definition. Hash covers the whole
// definition (signature and body) and ignores positions and comments;
// for a class it excludes members, which are Children.
type DefSignatureNode struct {
	Kind     NodeKind           `msgpack:"k"`
	Name     atom.Atom          `msgpack:"n"`
	Hash     uint64             `msgpack:"h"`
	Pos      source.LineCol     `msgpack:"p"`
	Children []DefSignatureNode `msgpack:"c,omitempty"`
}

// FileSignature is the fingerprint tree of one stub file.
type FileSignature struct {
	Path  atom.Atom          `msgpack:"path"`
	Hash  uint64             `msgpack:"hash"`
	Nodes []DefSignatureNode `msgpack:"nodes"`
}

// Key names a symbol or a class member; Member is empty for top-level symbols.
type Key struct {
	Symbol atom.Atom
	Member atom.Atom
}

var memberKeys = map[string]bool{
	"methods":    true,
	"properties": true,
	"constants":  true,
	"cases":      true,
}

// Build fingerprints f. Class, function and method names are folded;
// property and constant names are kept as written.
func Build(in *atom.Interner, f *syntax.File, path atom.Atom, content []byte) *FileSignature {
	fs := &FileSignature{Path: path, Hash: xxh3.Hash(content)}
	for _, c := range f.Constants {
		fs.Nodes = append(fs.Nodes, leaf(NodeConstant, in.Intern(symbolName(c.Name)), c))
	}
	for _, fn := range f.Functions {
		fs.Nodes = append(fs.Nodes, leaf(NodeFunction, in.InternLower(symbolName(fn.Name)), fn))
	}
	for _, c := range f.Classes {
		fs.Nodes = append(fs.Nodes, classNode(in, c))
	}
	sortByPos(fs.Nodes)
	return fs
}

func symbolName(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "\\")
}

func leaf(kind NodeKind, name atom.Atom, d syntax.Decl) DefSignatureNode {
	return DefSignatureNode{Kind: kind, Name: name, Hash: HashNode(d.Node(), nil), Pos: d.Pos()}
}

func classNode(in *atom.Interner, c *syntax.ClassDecl) DefSignatureNode {
	n := DefSignatureNode{
		Kind: NodeClass,
		Name: in.InternLower(symbolName(c.Name)),
		Hash: HashNode(c.Node(), memberKeys),
		Pos:  c.Pos(),
	}
	for _, m := range c.Methods {
		n.Children = append(n.Children, leaf(NodeMethod, in.InternLower(m.Name), m))
	}
	for _, p := range c.Properties {
		n.Children = append(n.Children, leaf(NodeProperty, in.Intern(strings.TrimPrefix(p.Name, "$")), p))
	}
	for _, k := range c.Constants {
		n.Children = append(n.Children, leaf(NodeClassConstant, in.Intern(k.Name), k))
	}
	for _, e := range c.Cases {
		n.Children = append(n.Children, leaf(NodeEnumCase, in.Intern(e.Name), e))
	}
	sortByPos(n.Children)
	return n
}

func sortByPos(nodes []DefSignatureNode) {
	slices.SortStableFunc(nodes, func(a, b DefSignatureNode) int {
		if a.Pos.Line != b.Pos.Line {
			return int(a.Pos.Line) - int(b.Pos.Line)
		}
		return int(a.Pos.Col) - int(b.Pos.Col)
	})
}

// HashNode hashes the YAML tree under n by kind, tag and value. Keys listed
// in skip are left out of the root mapping only.
func HashNode(n *yaml.Node, skip map[string]bool) uint64 {
	if n == nil {
		return 0
	}
	h := xxh3.New()
	if n.Kind == yaml.MappingNode && len(skip) > 0 {
		writeHeader(h, n, 0)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if skip[n.Content[i].Value] {
				continue
			}
			walk(h, n.Content[i])
			walk(h, n.Content[i+1])
		}
		return h.Sum64()
	}
	walk(h, n)
	return h.Sum64()
}

func writeHeader(h *xxh3.Hasher, n *yaml.Node, children int) {
	_, _ = h.Write([]byte{byte(n.Kind)})
	writeString(h, n.ShortTag())
	writeString(h, n.Value)
	writeString(h, strconv.Itoa(children))
}

func writeString(h *xxh3.Hasher, s string) {
	_, _ = io.WriteString(h, strconv.Itoa(len(s)))
	_, _ = h.Write([]byte{':'})
	_, _ = io.WriteString(h, s)
}

func walk(h *xxh3.Hasher, n *yaml.Node) {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	writeHeader(h, n, len(n.Content))
	for _, c := range n.Content {
		walk(h, c)
	}
}
