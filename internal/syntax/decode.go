package syntax

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidStub wraps every Parse failure.
var ErrInvalidStub = errors.New("invalid stub")

// Error is a decoding failure with its position.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return &Error{Line: n.Line, Col: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// Parse decodes one stub document. An empty document yields an empty file.
func Parse(path string, content []byte) (*File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidStub, err)
	}
	f := &File{Path: path}
	if root.Kind == 0 || len(root.Content) == 0 {
		return f, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidStub, errAt(doc, "stub document must be a mapping"))
	}
	if err := doc.Decode(f); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrInvalidStub, err)
	}
	f.Path = path
	return f, nil
}

func (l *NameList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value != "" {
			*l = NameList{n.Value}
		}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	return errAt(n, "expected a name or a list of names")
}

func (d *ClassDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ClassDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "class without name")
	}
	d.setNode(n)
	return nil
}

func (d *FunctionDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain FunctionDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "function without name")
	}
	d.setNode(n)
	return nil
}

func (d *MethodDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain MethodDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "method without name")
	}
	d.setNode(n)
	return nil
}

func (d *PropertyDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain PropertyDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "property without name")
	}
	d.setNode(n)
	return nil
}

func (d *ClassConstDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ClassConstDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "constant without name")
	}
	d.setNode(n)
	return nil
}

func (d *EnumCaseDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain EnumCaseDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "enum case without name")
	}
	d.setNode(n)
	return nil
}

func (d *ConstantDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ConstantDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "constant without name")
	}
	d.setNode(n)
	return nil
}

func (d *ParamDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain ParamDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if d.Name == "" {
		return errAt(n, "parameter without name")
	}
	d.setNode(n)
	return nil
}

func (e *AnyExpr) UnmarshalYAML(n *yaml.Node) error {
	x, err := decodeExpr(n)
	if err != nil {
		return err
	}
	e.Expr = x
	return nil
}

func (b *Block) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return errAt(n, "body must be a list of statements")
	}
	out := make(Block, 0, len(n.Content))
	for _, c := range n.Content {
		s, err := decodeStmt(c)
		if err != nil {
			return err
		}
		out = append(out, s)
	}
	*b = out
	return nil
}

// single splits a one-key mapping into its key and value node.
func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errAt(n, "expected a single-key mapping")
	}
	return n.Content[0].Value, n.Content[1], nil
}

func decodeExprs(n *yaml.Node) ([]Expr, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(n, "arguments must be a list")
	}
	out := make([]Expr, 0, len(n.Content))
	for _, c := range n.Content {
		x, err := decodeExpr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// fields indexes a mapping node by key.
func fields(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out, nil
}

func str(m map[string]*yaml.Node, key string) string {
	if n, ok := m[key]; ok && n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return ""
}

func flag(m map[string]*yaml.Node, key string) bool {
	n, ok := m[key]
	if !ok {
		return false
	}
	v, err := strconv.ParseBool(n.Value)
	return err == nil && v
}

func required(n *yaml.Node, m map[string]*yaml.Node, key string) (Expr, error) {
	c, ok := m[key]
	if !ok {
		return nil, errAt(n, "missing %q", key)
	}
	return decodeExpr(c)
}

func decodeExpr(n *yaml.Node) (Expr, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	p := at{posOf(n)}
	switch key {
	case "int":
		i, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, errAt(v, "bad int %q", v.Value)
		}
		return IntLit{p, i}, nil
	case "float":
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, errAt(v, "bad float %q", v.Value)
		}
		return FloatLit{p, f}, nil
	case "string":
		return StringLit{p, v.Value}, nil
	case "bool":
		b, err := strconv.ParseBool(v.Value)
		if err != nil {
			return nil, errAt(v, "bad bool %q", v.Value)
		}
		return BoolLit{p, b}, nil
	case "null":
		return NullLit{p}, nil
	case "var":
		return Var{p, v.Value}, nil
	case "array":
		items, err := decodeExprs(v)
		if err != nil {
			return nil, err
		}
		lit := ArrayLit{at: p, Items: make([]ArrayItem, len(items))}
		for i, x := range items {
			lit.Items[i] = ArrayItem{Value: x}
		}
		return lit, nil
	case "map":
		if v.Kind != yaml.SequenceNode {
			return nil, errAt(v, "map entries must be a list")
		}
		lit := ArrayLit{at: p}
		for _, e := range v.Content {
			m, err := fields(e)
			if err != nil {
				return nil, err
			}
			k, err := required(e, m, "key")
			if err != nil {
				return nil, err
			}
			val, err := required(e, m, "value")
			if err != nil {
				return nil, err
			}
			lit.Items = append(lit.Items, ArrayItem{Key: k, Value: val})
		}
		return lit, nil
	case "not":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return Not{p, x}, nil
	}

	m, err := fields(v)
	if err != nil {
		return nil, err
	}
	args, err := decodeExprs(m["args"])
	if err != nil {
		return nil, err
	}
	switch key {
	case "new":
		return New{p, str(m, "class"), args}, nil
	case "call":
		return Call{p, str(m, "function"), args}, nil
	case "method":
		obj, err := required(v, m, "object")
		if err != nil {
			return nil, err
		}
		return MethodCall{p, obj, str(m, "name"), args, flag(m, "nullsafe")}, nil
	case "static":
		return StaticCall{p, str(m, "class"), str(m, "name"), args}, nil
	case "prop":
		obj, err := required(v, m, "object")
		if err != nil {
			return nil, err
		}
		return PropFetch{p, obj, str(m, "name"), flag(m, "nullsafe")}, nil
	case "const":
		return ConstFetch{p, str(m, "class"), str(m, "name")}, nil
	case "index":
		arr, err := required(v, m, "array")
		if err != nil {
			return nil, err
		}
		k, err := required(v, m, "key")
		if err != nil {
			return nil, err
		}
		return Index{p, arr, k}, nil
	case "binary":
		l, err := required(v, m, "left")
		if err != nil {
			return nil, err
		}
		r, err := required(v, m, "right")
		if err != nil {
			return nil, err
		}
		return Binary{p, str(m, "op"), l, r}, nil
	case "instanceof":
		x, err := required(v, m, "expr")
		if err != nil {
			return nil, err
		}
		return InstanceOf{p, x, str(m, "class")}, nil
	case "ternary":
		c, err := required(v, m, "cond")
		if err != nil {
			return nil, err
		}
		th, err := required(v, m, "then")
		if err != nil {
			return nil, err
		}
		el, err := required(v, m, "else")
		if err != nil {
			return nil, err
		}
		return Ternary{p, c, th, el}, nil
	}
	return nil, errAt(n, "unknown expression %q", key)
}

func decodeBlock(n *yaml.Node) (Block, error) {
	if n == nil {
		return nil, nil
	}
	var b Block
	if err := b.UnmarshalYAML(n); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeStmt(n *yaml.Node) (Stmt, error) {
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	p := at{posOf(n)}
	switch key {
	case "expr":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return ExprStmt{p, x}, nil
	case "echo":
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return Echo{p, x}, nil
	case "return":
		if v.Kind == yaml.ScalarNode && (v.Tag == "!!null" || v.Value == "") {
			return Return{at: p}, nil
		}
		x, err := decodeExpr(v)
		if err != nil {
			return nil, err
		}
		return Return{p, x}, nil
	}

	m, err := fields(v)
	if err != nil {
		return nil, err
	}
	switch key {
	case "assign":
		t, err := required(v, m, "target")
		if err != nil {
			return nil, err
		}
		val, err := required(v, m, "value")
		if err != nil {
			return nil, err
		}
		return Assign{p, t, val}, nil
	case "if":
		c, err := required(v, m, "cond")
		if err != nil {
			return nil, err
		}
		th, err := decodeBlock(m["then"])
		if err != nil {
			return nil, err
		}
		el, err := decodeBlock(m["else"])
		if err != nil {
			return nil, err
		}
		return If{p, c, th, el}, nil
	case "foreach":
		x, err := required(v, m, "expr")
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(m["body"])
		if err != nil {
			return nil, err
		}
		return Foreach{p, x, str(m, "key"), str(m, "value"), body}, nil
	}
	return nil, errAt(n, "unknown statement %q", key)
}
