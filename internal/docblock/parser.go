package docblock

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"tephra/internal/atom"
	"tephra/internal/ttype"
)

// Template is a template parameter visible while parsing.
type Template struct {
	Name           string
	DefiningEntity atom.Atom
	Constraint     ttype.TUnion
}

// Scope resolves names that are not classes.
type Scope struct {
	Templates []Template
	// Aliases maps a local alias name to the declaring class and alias name.
	Aliases map[string]ttype.TAlias
}

func (s *Scope) template(name string) (Template, bool) {
	if s == nil {
		return Template{}, false
	}
	// inner templates shadow outer ones; method templates are appended last
	for i := len(s.Templates) - 1; i >= 0; i-- {
		if s.Templates[i].Name == name {
			return s.Templates[i], true
		}
	}
	return Template{}, false
}

func (s *Scope) alias(name string) (ttype.TAlias, bool) {
	if s == nil || s.Aliases == nil {
		return ttype.TAlias{}, false
	}
	a, ok := s.Aliases[name]
	return a, ok
}

// Names the expander resolves against the enclosing class.
const (
	SelfName   = "self"
	StaticName = "static"
	ParentName = "parent"
)

type parser struct {
	in    *atom.Interner
	scope *Scope
	src   string
	toks  []token
	pos   int
}

// Parse reads a docblock type. The result is not combined.
func Parse(in *atom.Interner, text string, scope *Scope) (ttype.TUnion, error) {
	toks, err := tokenize(text)
	if err != nil {
		return ttype.TUnion{}, err
	}
	p := &parser{in: in, scope: scope, src: text, toks: toks}
	if p.peek().kind == tokEOF {
		return ttype.TUnion{}, p.errorf("empty type")
	}
	u, err := p.parseUnion()
	if err != nil {
		return ttype.TUnion{}, err
	}
	if p.peek().kind != tokEOF {
		return ttype.TUnion{}, p.errorf("unexpected %s", p.peek())
	}
	return u, nil
}

// MustParse is Parse for literals in tests and builtins.
func MustParse(in *atom.Interner, text string) ttype.TUnion {
	u, err := Parse(in, text, nil)
	if err != nil {
		panic(err)
	}
	return u
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(k tokKind) bool {
	if p.peek().kind == k {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(k tokKind, what string) error {
	if !p.accept(k) {
		return p.errorf("expected %s, found %s", what, p.peek())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &Error{Text: p.src, Offset: p.peek().off, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseUnion() (ttype.TUnion, error) {
	var types []ttype.Atomic
	for {
		part, err := p.parseIntersection()
		if err != nil {
			return ttype.TUnion{}, err
		}
		types = append(types, part.Types...)
		if !p.accept(tokPipe) {
			break
		}
	}
	return ttype.Union(types...), nil
}

// parseIntersection supports Foo&static; other intersections keep the
// first object operand.
func (p *parser) parseIntersection() (ttype.TUnion, error) {
	u, err := p.parsePostfix()
	if err != nil {
		return u, err
	}
	for p.accept(tokAmp) {
		rhs, err := p.parsePostfix()
		if err != nil {
			return u, err
		}
		if !u.IsSingle() || !rhs.IsSingle() {
			continue
		}
		l, lok := u.Types[0].(ttype.TNamedObject)
		r, rok := rhs.Types[0].(ttype.TNamedObject)
		if lok && rok && r.IsThis {
			l.IsThis = true
			u = ttype.Single(l)
		}
	}
	return u, nil
}

func (p *parser) parsePostfix() (ttype.TUnion, error) {
	u, err := p.parsePrimary()
	if err != nil {
		return u, err
	}
	for p.peek().kind == tokLBracket {
		p.next()
		if p.accept(tokRBracket) {
			u = ttype.Single(ttype.ArrayOf(ttype.ArrayKeyU(), u))
			continue
		}
		idx, err := p.parseUnion()
		if err != nil {
			return u, err
		}
		if err := p.expect(tokRBracket, "]"); err != nil {
			return u, err
		}
		u = ttype.Single(ttype.TDerived{Op: ttype.DerivedIndexAccess, Target: u, Index: idx})
	}
	return u, nil
}

func (p *parser) parsePrimary() (ttype.TUnion, error) {
	t := p.peek()
	switch t.kind {
	case tokQuestion:
		p.next()
		inner, err := p.parsePostfix()
		if err != nil {
			return inner, err
		}
		inner.Types = append(slices.Clone(inner.Types), ttype.TNull{})
		return inner, nil
	case tokLParen:
		p.next()
		u, err := p.parseUnion()
		if err != nil {
			return u, err
		}
		return u, p.expect(tokRParen, ")")
	case tokInt:
		p.next()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return ttype.TUnion{}, &Error{Text: p.src, Offset: t.off, Msg: "integer out of range"}
		}
		return ttype.Single(ttype.IntLit(v)), nil
	case tokFloat:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return ttype.TUnion{}, &Error{Text: p.src, Offset: t.off, Msg: "bad float"}
		}
		return ttype.Single(ttype.FloatLit(v)), nil
	case tokString:
		p.next()
		return ttype.Single(ttype.StringLit(p.in.Intern(t.text))), nil
	case tokIdent:
		return p.parseNamed()
	}
	return ttype.TUnion{}, p.errorf("unexpected %s", t)
}

func (p *parser) parseNamed() (ttype.TUnion, error) {
	t := p.next()
	name := strings.TrimPrefix(t.text, "\\")

	if p.peek().kind == tokDoubleColon {
		return p.parseMemberReference(name)
	}
	if tpl, ok := p.scope.template(name); ok {
		return ttype.Single(ttype.TGenericParameter{
			Name:           p.in.Intern(tpl.Name),
			DefiningEntity: tpl.DefiningEntity,
			Constraint:     tpl.Constraint,
		}), nil
	}
	if a, ok := p.scope.alias(name); ok {
		return ttype.Single(a), nil
	}
	if u, ok, err := p.parseKeyword(strings.ToLower(name)); ok || err != nil {
		return u, err
	}

	obj := ttype.TNamedObject{Name: p.in.Intern(name)}
	if p.peek().kind == tokLAngle {
		params, err := p.parseArgs()
		if err != nil {
			return ttype.TUnion{}, err
		}
		obj.TypeParams = params
	}
	return ttype.Single(obj), nil
}

func (p *parser) parseMemberReference(class string) (ttype.TUnion, error) {
	p.next()
	m := p.next()
	if m.kind != tokIdent {
		return ttype.TUnion{}, p.errorf("expected member name after ::")
	}
	member := m.text
	if p.accept(tokStar) {
		member += "*"
	}
	if strings.EqualFold(member, "class") {
		return ttype.Single(ttype.TString{NonEmpty: true}), nil
	}
	return ttype.Single(ttype.TMemberReference{Class: p.in.Intern(class), Member: p.in.Intern(member)}), nil
}

// parseArgs reads <T, U, ...>.
func (p *parser) parseArgs() ([]ttype.TUnion, error) {
	if err := p.expect(tokLAngle, "<"); err != nil {
		return nil, err
	}
	var out []ttype.TUnion
	for {
		u, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
		if !p.accept(tokComma) {
			break
		}
	}
	return out, p.expect(tokRAngle, ">")
}

func (p *parser) bound() (int64, error) {
	t := p.next()
	switch {
	case t.kind == tokIdent && t.text == "min":
		return math.MinInt64, nil
	case t.kind == tokIdent && t.text == "max":
		return math.MaxInt64, nil
	case t.kind == tokInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return 0, &Error{Text: p.src, Offset: t.off, Msg: "integer out of range"}
		}
		return v, nil
	}
	return 0, &Error{Text: p.src, Offset: t.off, Msg: "expected integer bound"}
}

func one(a ttype.Atomic) (ttype.TUnion, bool, error) { return ttype.Single(a), true, nil }

func (p *parser) parseKeyword(kw string) (ttype.TUnion, bool, error) {
	switch kw {
	case "int", "integer":
		if p.peek().kind != tokLAngle {
			return one(ttype.TInt{})
		}
		p.next()
		lo, err := p.bound()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		if err := p.expect(tokComma, ","); err != nil {
			return ttype.TUnion{}, true, err
		}
		hi, err := p.bound()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		if err := p.expect(tokRAngle, ">"); err != nil {
			return ttype.TUnion{}, true, err
		}
		if lo > hi {
			return ttype.TUnion{}, true, p.errorf("empty integer range")
		}
		return one(ttype.IntFromBounds(lo, hi))
	case "positive-int":
		return one(ttype.IntFromOf(1))
	case "non-negative-int":
		return one(ttype.IntFromOf(0))
	case "negative-int":
		return one(ttype.IntToOf(-1))
	case "non-positive-int":
		return one(ttype.IntToOf(0))
	case "float", "double":
		return one(ttype.TFloat{})
	case "string", "lowercase-string":
		return one(ttype.TString{})
	case "non-empty-string", "non-falsy-string", "truthy-string", "non-empty-lowercase-string":
		return one(ttype.TString{NonEmpty: true})
	case "numeric-string":
		return one(ttype.TString{NonEmpty: true, Numeric: true})
	case "class-string", "interface-string", "enum-string", "trait-string":
		if p.peek().kind == tokLAngle {
			if _, err := p.parseArgs(); err != nil {
				return ttype.TUnion{}, true, err
			}
		}
		return one(ttype.TString{NonEmpty: true})
	case "bool", "boolean":
		return one(ttype.TBool{})
	case "true":
		return one(ttype.TBool{Value: ttype.BoolTrue})
	case "false":
		return one(ttype.TBool{Value: ttype.BoolFalse})
	case "null":
		return one(ttype.TNull{})
	case "void":
		return one(ttype.TVoid{})
	case "never", "never-return", "never-returns", "no-return":
		return one(ttype.TNever{})
	case "mixed", "callable", "iterable":
		// callable and iterable are not modelled
		if p.peek().kind == tokLAngle {
			if _, err := p.parseArgs(); err != nil {
				return ttype.TUnion{}, true, err
			}
		}
		return one(ttype.TMixed{})
	case "nonnull":
		return one(ttype.TMixed{Axis: ttype.MixedNonNull})
	case "truthy-mixed", "non-falsy-mixed":
		return one(ttype.TMixed{Axis: ttype.MixedTruthy})
	case "falsy-mixed":
		return one(ttype.TMixed{Axis: ttype.MixedFalsy})
	case "object":
		return one(ttype.TObject{})
	case "scalar":
		return one(ttype.TScalar{})
	case "numeric":
		return one(ttype.TNumeric{})
	case "array-key":
		return one(ttype.TArrayKey{})
	case "resource":
		return one(ttype.TResource{})
	case "open-resource":
		return one(ttype.TResource{State: ttype.ResourceOpen})
	case "closed-resource":
		return one(ttype.TResource{State: ttype.ResourceClosed})
	case "self":
		return one(ttype.TNamedObject{Name: p.in.Intern(SelfName)})
	case "static", "$this":
		return one(ttype.TNamedObject{Name: p.in.Intern(StaticName), IsThis: true})
	case "parent":
		return one(ttype.TNamedObject{Name: p.in.Intern(ParentName)})
	case "array", "non-empty-array", "associative-array":
		return p.parseArray(kw == "non-empty-array")
	case "list", "non-empty-list":
		return p.parseList(kw == "non-empty-list")
	case "key-of", "value-of", "properties-of", "int-mask-of":
		ops := map[string]ttype.DerivedOp{
			"key-of":        ttype.DerivedKeyOf,
			"value-of":      ttype.DerivedValueOf,
			"properties-of": ttype.DerivedPropertiesOf,
			"int-mask-of":   ttype.DerivedIntMaskOf,
		}
		args, err := p.parseArgs()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		if len(args) != 1 {
			return ttype.TUnion{}, true, p.errorf("%s takes one argument", kw)
		}
		return one(ttype.TDerived{Op: ops[kw], Target: args[0]})
	case "int-mask":
		if err := p.expect(tokLAngle, "<"); err != nil {
			return ttype.TUnion{}, true, err
		}
		var vals []int64
		for {
			v, err := p.bound()
			if err != nil {
				return ttype.TUnion{}, true, err
			}
			vals = append(vals, v)
			if !p.accept(tokComma) {
				break
			}
		}
		if err := p.expect(tokRAngle, ">"); err != nil {
			return ttype.TUnion{}, true, err
		}
		return one(ttype.TDerived{Op: ttype.DerivedIntMask, Values: vals})
	}
	return ttype.TUnion{}, false, nil
}

func (p *parser) parseArray(nonEmpty bool) (ttype.TUnion, bool, error) {
	switch p.peek().kind {
	case tokLAngle:
		args, err := p.parseArgs()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		var arr ttype.TKeyedArray
		switch len(args) {
		case 1:
			arr = ttype.ArrayOf(ttype.ArrayKeyU(), args[0])
		case 2:
			arr = ttype.ArrayOf(args[0], args[1])
		default:
			return ttype.TUnion{}, true, p.errorf("array takes one or two arguments")
		}
		arr.NonEmpty = nonEmpty
		return one(arr)
	case tokLBrace:
		arr, err := p.parseShape()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		return one(arr)
	}
	arr := ttype.ArrayOf(ttype.ArrayKeyU(), ttype.Mixed())
	arr.NonEmpty = nonEmpty
	return one(arr)
}

func (p *parser) parseList(nonEmpty bool) (ttype.TUnion, bool, error) {
	switch p.peek().kind {
	case tokLAngle:
		args, err := p.parseArgs()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		if len(args) != 1 {
			return ttype.TUnion{}, true, p.errorf("list takes one argument")
		}
		return one(ttype.TList{Element: args[0], NonEmpty: nonEmpty})
	case tokLBrace:
		l, err := p.parseListShape()
		if err != nil {
			return ttype.TUnion{}, true, err
		}
		return one(l)
	}
	return one(ttype.TList{Element: ttype.Mixed(), NonEmpty: nonEmpty})
}

// shapeKey reports whether the next tokens form "key:" or "key?:".
func (p *parser) shapeKey() (ttype.ArrayKey, bool, bool, error) {
	t := p.peek()
	n := 1
	var key ttype.ArrayKey
	switch t.kind {
	case tokIdent:
		if p.peekAt(1).kind == tokDoubleColon {
			m := p.peekAt(2)
			if m.kind != tokIdent {
				return key, false, false, nil
			}
			key = ttype.ClassConstantKey(p.in.Intern(strings.TrimPrefix(t.text, "\\")), p.in.Intern(m.text))
			n = 3
		} else {
			key = ttype.StringKey(p.in.Intern(t.text))
		}
	case tokString:
		key = ttype.StringKey(p.in.Intern(t.text))
	case tokInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return key, false, false, &Error{Text: p.src, Offset: t.off, Msg: "integer out of range"}
		}
		key = ttype.IntKey(v)
	default:
		return key, false, false, nil
	}
	optional := false
	if p.peekAt(n).kind == tokQuestion {
		optional = true
		n++
	}
	if p.peekAt(n).kind != tokColon {
		return key, false, false, nil
	}
	p.pos += n + 1
	return key, optional, true, nil
}

func (p *parser) parseShape() (ttype.TKeyedArray, error) {
	p.next() // {
	var arr ttype.TKeyedArray
	var next int64
	for p.peek().kind != tokRBrace {
		if p.accept(tokEllipsis) {
			arr.Params = &ttype.KeyedParams{Key: ttype.ArrayKeyU(), Value: ttype.Mixed()}
			if p.peek().kind == tokLAngle {
				args, err := p.parseArgs()
				if err != nil {
					return arr, err
				}
				switch len(args) {
				case 1:
					arr.Params.Value = args[0]
				case 2:
					arr.Params.Key, arr.Params.Value = args[0], args[1]
				default:
					return arr, p.errorf("unsealed shape takes one or two arguments")
				}
			}
			p.accept(tokComma)
			break
		}
		key, optional, ok, err := p.shapeKey()
		if err != nil {
			return arr, err
		}
		if !ok {
			key = ttype.IntKey(next)
		}
		if key.Kind == ttype.KeyInt && key.Int >= next {
			next = key.Int + 1
		}
		val, err := p.parseUnion()
		if err != nil {
			return arr, err
		}
		arr.Known = slices.DeleteFunc(arr.Known, func(it ttype.KnownItem) bool { return it.Key == key })
		arr.Known = append(arr.Known, ttype.KnownItem{Key: key, Type: val, Optional: optional})
		if !p.accept(tokComma) {
			break
		}
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return arr, err
	}
	slices.SortFunc(arr.Known, func(a, b ttype.KnownItem) int { return a.Key.Compare(b.Key) })
	return arr, nil
}

func (p *parser) parseListShape() (ttype.TList, error) {
	p.next() // {
	l := ttype.TList{Element: ttype.Never()}
	next := 0
	for p.peek().kind != tokRBrace {
		if p.accept(tokEllipsis) {
			l.Element = ttype.Mixed()
			if p.peek().kind == tokLAngle {
				args, err := p.parseArgs()
				if err != nil {
					return l, err
				}
				if len(args) != 1 {
					return l, p.errorf("unsealed list takes one argument")
				}
				l.Element = args[0]
			}
			p.accept(tokComma)
			break
		}
		key, optional, ok, err := p.shapeKey()
		if err != nil {
			return l, err
		}
		idx := next
		if ok {
			if key.Kind != ttype.KeyInt || key.Int < 0 {
				return l, p.errorf("list shape keys must be non-negative integers")
			}
			idx = int(key.Int)
		}
		next = idx + 1
		val, err := p.parseUnion()
		if err != nil {
			return l, err
		}
		l.Known = append(l.Known, ttype.ListElement{Index: idx, Type: val, Optional: optional})
		if !p.accept(tokComma) {
			break
		}
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return l, err
	}
	slices.SortFunc(l.Known, func(a, b ttype.ListElement) int { return a.Index - b.Index })
	return l, nil
}
