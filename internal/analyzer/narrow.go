package analyzer

import (
	"strings"

	"tephra/internal/codex"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
	"tephra/internal/ttype/comparator"
)

// narrow refines ctx for the branch where cond evaluates to positive. ctx
// is modified in place and returned.
func (a *analyzer) narrow(ctx *blockContext, cond syntax.Expr, positive bool) *blockContext {
	switch c := cond.(type) {
	case syntax.Var:
		a.narrowTruthy(ctx, varName(c.Name), positive)
	case syntax.Not:
		return a.narrow(ctx, c.Expr, !positive)
	case syntax.Binary:
		switch c.Op {
		case "&&", "and":
			if positive {
				ctx = a.narrow(ctx, c.Left, true)
				return a.narrow(ctx, c.Right, true)
			}
		case "||", "or":
			if !positive {
				ctx = a.narrow(ctx, c.Left, false)
				return a.narrow(ctx, c.Right, false)
			}
		case "===", "==", "!==", "!=":
			name, ok := nullComparison(c)
			if !ok {
				break
			}
			isNull := c.Op == "===" || c.Op == "=="
			a.narrowNull(ctx, name, isNull == positive)
		}
	case syntax.InstanceOf:
		v, ok := c.Expr.(syntax.Var)
		if !ok {
			break
		}
		meta := a.narrowClass(c.Class)
		if meta == nil {
			break
		}
		a.narrowInstance(ctx, varName(v.Name), meta, positive)
	}
	return ctx
}

// nullComparison matches $x === null and null === $x.
func nullComparison(b syntax.Binary) (string, bool) {
	if v, ok := b.Left.(syntax.Var); ok {
		if _, isNull := b.Right.(syntax.NullLit); isNull {
			return varName(v.Name), true
		}
	}
	if v, ok := b.Right.(syntax.Var); ok {
		if _, isNull := b.Left.(syntax.NullLit); isNull {
			return varName(v.Name), true
		}
	}
	return "", false
}

func (a *analyzer) narrowTruthy(ctx *blockContext, name string, positive bool) {
	t, ok := ctx.vars[name]
	if !ok {
		return
	}
	var out []ttype.Atomic
	for _, at := range t.Types {
		if positive && ttype.AlwaysFalsy(at, a.in) || !positive && ttype.AlwaysTruthy(at, a.in) {
			continue
		}
		switch v := at.(type) {
		case ttype.TBool:
			if v.Value == ttype.BoolGeneral {
				if positive {
					at = ttype.TBool{Value: ttype.BoolTrue}
				} else {
					at = ttype.TBool{Value: ttype.BoolFalse}
				}
			}
		case ttype.TMixed:
			if v.Axis == ttype.MixedAny {
				if positive {
					at = ttype.TMixed{Axis: ttype.MixedTruthy}
				} else {
					at = ttype.TMixed{Axis: ttype.MixedFalsy}
				}
			}
		}
		out = append(out, at)
	}
	a.narrowed(ctx, name, t, out, positive)
}

func (a *analyzer) narrowNull(ctx *blockContext, name string, isNull bool) {
	t, ok := ctx.vars[name]
	if !ok {
		return
	}
	var out []ttype.Atomic
	for _, at := range t.Types {
		m, mixed := at.(ttype.TMixed)
		switch {
		case isNull && mixed:
			out = append(out, ttype.TNull{})
		case isNull && ttype.IsNullish(at):
			out = append(out, at)
		case !isNull && mixed && m.Axis == ttype.MixedAny:
			out = append(out, ttype.TMixed{Axis: ttype.MixedNonNull})
		case !isNull && !ttype.IsNullish(at):
			out = append(out, at)
		}
	}
	// the variable is defined once it compared non-null
	a.narrowed(ctx, name, t, out, !isNull)
}

func (a *analyzer) narrowClass(name string) *codex.ClassLikeMetadata {
	name = trimName(name)
	switch strings.ToLower(name) {
	case "self", "static":
		return a.unit.class
	case "parent":
		if a.unit.class == nil {
			return nil
		}
		return a.cb.ClassLike(a.unit.class.DirectParentClass)
	}
	return a.cb.ClassLike(a.in.Intern(name))
}

func (a *analyzer) narrowInstance(ctx *blockContext, name string, meta *codex.ClassLikeMetadata, positive bool) {
	t, ok := ctx.vars[name]
	if !ok {
		return
	}
	target := ttype.TNamedObject{Name: meta.Name}
	var out []ttype.Atomic
	for _, at := range t.Types {
		inside := comparator.IsContainedBy(a.cb, at, target, true, nil)
		if !positive {
			if !inside {
				out = append(out, at)
			}
			continue
		}
		if inside {
			out = append(out, at)
			continue
		}
		switch v := at.(type) {
		case ttype.TMixed, ttype.TObject, ttype.TGenericParameter:
			out = append(out, target)
		case ttype.TNamedObject:
			// a parent or an interface narrows down to the tested class
			other := a.cb.ClassLike(v.Name)
			if other != nil && (other.IsInterface() || meta.IsInterface() || a.cb.IsInstanceOf(meta.Key, other.Key)) {
				out = append(out, target)
			}
		}
	}
	a.narrowed(ctx, name, t, out, positive)
}

// narrowed stores the refined atomics of a variable. An empty result is an
// impossible branch and types the variable never.
func (a *analyzer) narrowed(ctx *blockContext, name string, prev ttype.TUnion, out []ttype.Atomic, defined bool) {
	u := prev
	if len(out) == 0 {
		u.Types = []ttype.Atomic{ttype.TNever{}}
	} else {
		u.Types = out
		u = a.combine(u)
	}
	if defined {
		u.PossiblyUndefined = false
	} else {
		u.PossiblyUndefined = prev.PossiblyUndefined
	}
	ctx.vars[name] = u
}
