package analyzer

import (
	"fmt"
	"strings"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
	"tephra/internal/ttype/comparator"
)

type analyzer struct {
	cb       *codex.CodebaseMetadata
	in       *atom.Interner
	unit     *unit
	settings *Settings
	reporter diag.Reporter
	refs     *codex.SymbolReferences
	// quiet > 0 suppresses diagnostics, used by the widening pass of loops
	quiet int
}

func (a *analyzer) report(code diag.Code, pos source.LineCol, format string, args ...any) {
	if a.quiet > 0 {
		return
	}
	span := a.unit.file.Source.SpanAt(pos, 1)
	diag.Report(a.reporter, code, span, fmt.Sprintf(format, args...)).Emit()
}

func (a *analyzer) format(u ttype.TUnion) string { return ttype.Format(a.in, u) }

// bodyReference records that the current unit reads k.
func (a *analyzer) bodyReference(k codex.SymbolKey) {
	a.refs.AddBodyReference(a.unit.key, k)
}

// signatureReference records that the current unit's declaration depends on k.
func (a *analyzer) signatureReference(k codex.SymbolKey) {
	a.refs.AddSignatureReference(a.unit.key, k)
}

// unitName renders the unit for messages: "f" or "Foo::bar".
func (a *analyzer) unitName() string {
	if a.unit.class == nil {
		return a.in.String(a.unit.fn.Name)
	}
	if a.unit.fn == nil {
		return a.in.String(a.unit.class.Name)
	}
	return a.in.String(a.unit.class.Name) + "::" + a.in.String(a.unit.fn.Name)
}

func (a *analyzer) combine(us ...ttype.TUnion) ttype.TUnion {
	return combiner.CombineAll(us, a.cb)
}

func varName(s string) string { return strings.TrimPrefix(s, "$") }

func trimName(s string) string { return strings.TrimPrefix(strings.TrimSpace(s), `\`) }

func (a *analyzer) analyzeBody() {
	fn := a.unit.fn
	ctx := newBlockContext()
	for _, p := range fn.Params {
		t := p.Type
		if !p.HasType || len(t.Types) == 0 {
			t = ttype.Mixed()
		}
		if p.Variadic {
			t = ttype.Single(ttype.ListOf(t))
		}
		ctx.set(varName(a.in.String(p.Name)), t)
	}
	a.block(ctx, a.unit.body)

	if ctx.returned || !fn.HasReturnType {
		return
	}
	ret := fn.ReturnType
	if ret.IsVoid() || ret.Has(ttype.KindVoid) || ret.IsMixed() || ret.IsNever() {
		return
	}
	a.report(diag.MissingReturnStatement, a.unit.pos, "not all paths of %s return a value of the declared type %s", a.unitName(), a.format(ret))
}

func (a *analyzer) block(ctx *blockContext, b syntax.Block) {
	for _, st := range b {
		if ctx.returned {
			return
		}
		a.stmt(ctx, st)
	}
}

func (a *analyzer) stmt(ctx *blockContext, st syntax.Stmt) {
	switch s := st.(type) {
	case syntax.Assign:
		a.assign(ctx, s)
	case syntax.ExprStmt:
		a.expr(ctx, s.Expr)
	case syntax.Echo:
		a.expr(ctx, s.Expr)
	case syntax.Return:
		a.returnStmt(ctx, s)
	case syntax.If:
		a.expr(ctx, s.Cond)
		then := a.narrow(ctx.clone(), s.Cond, true)
		a.block(then, s.Then)
		els := a.narrow(ctx.clone(), s.Cond, false)
		a.block(els, s.Else)
		*ctx = *mergeBranches(a.cb, then, els)
	case syntax.Foreach:
		a.foreach(ctx, s)
	}
}

func (a *analyzer) assign(ctx *blockContext, s syntax.Assign) {
	switch t := s.Target.(type) {
	case syntax.Var:
		v := a.expr(ctx, s.Value)
		if varName(t.Name) == "this" {
			return
		}
		ctx.set(varName(t.Name), v)
	case syntax.PropFetch:
		v := a.expr(ctx, s.Value)
		a.assignProperty(ctx, t, v)
	case syntax.Index:
		v := a.expr(ctx, s.Value)
		a.assignIndex(ctx, t, v)
	default:
		a.expr(ctx, s.Value)
	}
}

func (a *analyzer) assignProperty(ctx *blockContext, target syntax.PropFetch, v ttype.TUnion) {
	obj := a.expr(ctx, target.Object)
	name := a.in.Intern(strings.TrimPrefix(target.Name, "$"))
	for _, at := range obj.Types {
		o, ok := at.(ttype.TNamedObject)
		if !ok {
			continue
		}
		meta := a.cb.ClassLike(o.Name)
		if meta == nil {
			continue
		}
		p, expected := a.property(meta, o, name, target.Pos())
		if p == nil || !p.HasType || v.HasMixed() {
			continue
		}
		if !comparator.UnionIsContainedBy(a.cb, v, expected, false, false, nil) {
			a.report(diag.InvalidPropertyAssignment, target.Pos(), "%s::$%s with declared type %s cannot be assigned type %s",
				a.in.String(meta.Name), a.in.String(name), a.format(expected), a.format(v))
		}
	}
}

// assignIndex handles $x[k] = v; only variables are tracked.
func (a *analyzer) assignIndex(ctx *blockContext, target syntax.Index, v ttype.TUnion) {
	key := a.expr(ctx, target.Key)
	base, ok := target.Array.(syntax.Var)
	if !ok {
		a.expr(ctx, target.Array)
		return
	}
	name := varName(base.Name)
	cur, defined := ctx.vars[name]
	if !defined {
		cur = ttype.Single(ttype.EmptyArray())
	}
	ctx.set(name, a.withOffset(cur, key, v))
}

func (a *analyzer) returnStmt(ctx *blockContext, s syntax.Return) {
	actual := ttype.Void()
	if s.Value != nil {
		actual = a.expr(ctx, s.Value)
	}
	ctx.returned = true

	fn := a.unit.fn
	if !fn.HasReturnType {
		return
	}
	expected := fn.ReturnType
	name := a.unitName()
	switch {
	case expected.IsVoid():
		if s.Value != nil && !actual.IsNull() {
			a.report(diag.InvalidReturnStatement, s.Pos(), "%s is declared void but returns %s", name, a.format(actual))
		}
		return
	case s.Value == nil:
		if !expected.Has(ttype.KindVoid) && !expected.IsMixed() {
			a.report(diag.InvalidReturnStatement, s.Pos(), "empty return in %s, expecting %s", name, a.format(expected))
		}
		return
	case actual.HasMixed() || expected.IsMixed():
		return
	}

	if comparator.UnionIsContainedBy(a.cb, actual, expected, false, false, nil) {
		return
	}
	switch {
	case actual.IsNullable() && comparator.UnionIsContainedBy(a.cb, actual, expected, true, false, nil):
		a.report(diag.NullableReturnStatement, s.Pos(), "%s returns %s, which may be null, but declares %s", name, a.format(actual), a.format(expected))
	case a.someContained(actual, expected):
		a.report(diag.PossiblyInvalidReturnStatement, s.Pos(), "%s possibly returns %s, expecting %s", name, a.format(actual), a.format(expected))
	default:
		a.report(diag.InvalidReturnStatement, s.Pos(), "%s returns %s, expecting %s", name, a.format(actual), a.format(expected))
	}
}

// someContained reports whether any atomic of input fits container.
func (a *analyzer) someContained(input, container ttype.TUnion) bool {
	for _, at := range input.Types {
		if ttype.IsNullish(at) {
			continue
		}
		if comparator.UnionIsContainedBy(a.cb, ttype.Single(at), container, false, false, nil) {
			return true
		}
	}
	return false
}

// foreach runs the body twice: a silent pass widens the variables the body
// writes, the second pass reports against the widened state. The body may
// not run at all, so the state after the loop joins the state before it.
func (a *analyzer) foreach(ctx *blockContext, s syntax.Foreach) {
	subject := a.expr(ctx, s.Expr)
	key, value := a.iterationTypes(subject, s.Pos())

	bind := func(c *blockContext) {
		if s.Key != "" {
			c.set(varName(s.Key), key)
		}
		if s.Value != "" {
			c.set(varName(s.Value), value)
		}
	}

	before := ctx.clone()
	a.quiet++
	first := ctx.clone()
	bind(first)
	a.block(first, s.Body)
	a.quiet--

	loop := mergeBranches(a.cb, before, first)
	if sameVars(loop, before) {
		loop = before.clone()
	}
	bind(loop)
	a.block(loop, s.Body)
	*ctx = *mergeBranches(a.cb, before, loop)
}

// iterationTypes returns the key and value types of iterating subject.
func (a *analyzer) iterationTypes(subject ttype.TUnion, pos source.LineCol) (ttype.TUnion, ttype.TUnion) {
	var keys, values []ttype.TUnion
	var bad []ttype.Atomic
	for _, at := range subject.Types {
		switch t := at.(type) {
		case ttype.TList, ttype.TKeyedArray:
			keys = append(keys, arrayKeyType(at))
			values = append(values, arrayValueType(a.cb, at))
		case ttype.TMixed, ttype.TObject, ttype.TGenericParameter:
			keys = append(keys, ttype.Mixed())
			values = append(values, ttype.Mixed())
		case ttype.TNamedObject:
			k, v := a.traversableTypes(t)
			keys = append(keys, k)
			values = append(values, v)
		case ttype.TNever:
		default:
			bad = append(bad, at)
		}
	}
	if len(bad) > 0 {
		a.report(diag.InvalidIterator, pos, "cannot iterate over %s", a.format(ttype.Union(bad...)))
	}
	if len(keys) == 0 {
		return ttype.Mixed(), ttype.Mixed()
	}
	return a.combine(keys...), a.combine(values...)
}

// traversableTypes reads Traversable<K, V> style type parameters; other
// objects iterate their public properties.
func (a *analyzer) traversableTypes(o ttype.TNamedObject) (ttype.TUnion, ttype.TUnion) {
	switch len(o.TypeParams) {
	case 1:
		return ttype.Mixed(), o.TypeParams[0]
	case 2:
		return o.TypeParams[0], o.TypeParams[1]
	}
	return ttype.Mixed(), ttype.Mixed()
}
