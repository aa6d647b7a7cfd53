package analyzer

import (
	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
	"tephra/internal/ttype/comparator"
	"tephra/internal/ttype/template"
)

func (a *analyzer) newResult() *template.Result { return template.NewResult() }

func fallback(tpl codex.TemplateType) ttype.TUnion { return template.Fallback(tpl) }

func (a *analyzer) replace(u ttype.TUnion, r *template.Result) ttype.TUnion {
	if r == nil {
		return u
	}
	return template.Replace(a.cb, u, r)
}

// classTemplates binds the templates of the declaring class as seen through
// o. Missing arguments take the template fallback.
func (a *analyzer) classTemplates(meta *codex.ClassLikeMetadata, o ttype.TNamedObject, declaring atom.Atom) *template.Result {
	r := template.NewResult()
	decl := a.cb.ClassLikes[declaring]
	if decl == nil {
		return r
	}
	for _, tpl := range decl.TemplateTypes {
		u, ok := template.SpecializedTemplateType(a.cb, tpl.Name, declaring, meta, o.TypeParams)
		if !ok {
			u = template.Fallback(tpl)
		}
		r.Add(a.cb, tpl.Name, tpl.DefiningEntity, u)
	}
	return r
}

// replaceThis substitutes static with the object the member was reached
// through.
func replaceThis(u ttype.TUnion, o ttype.TNamedObject) ttype.TUnion {
	changed := false
	for _, at := range u.Types {
		if t, ok := at.(ttype.TNamedObject); ok && t.IsThis {
			changed = true
			break
		}
	}
	if !changed {
		return u
	}
	out := u
	out.Types = make([]ttype.Atomic, len(u.Types))
	for i, at := range u.Types {
		if t, ok := at.(ttype.TNamedObject); ok && t.IsThis {
			at = o
		}
		out.Types[i] = at
	}
	return out
}

func (a *analyzer) fnName(fn *codex.FunctionLikeMetadata) string {
	if fn.DefiningClass == atom.Empty {
		return a.in.String(fn.Name)
	}
	cls := fn.DefiningClass
	if meta := a.cb.ClassLikes[cls]; meta != nil {
		cls = meta.Name
	}
	return a.in.String(cls) + "::" + a.in.String(fn.Name)
}

// paramFor returns the parameter argument i binds to.
func paramFor(fn *codex.FunctionLikeMetadata, i int) (codex.ParamMetadata, bool) {
	if i < len(fn.Params) {
		return fn.Params[i], true
	}
	if fn.IsVariadic() {
		return fn.Params[len(fn.Params)-1], true
	}
	return codex.ParamMetadata{}, false
}

// checkArgs checks the call arguments against fn's parameters and returns
// bound extended with the templates inferred from them.
func (a *analyzer) checkArgs(fn *codex.FunctionLikeMetadata, args []syntax.Expr, argTypes []ttype.TUnion, pos source.LineCol, bound *template.Result) *template.Result {
	if bound == nil {
		bound = template.NewResult()
	}
	name := a.fnName(fn)
	if required := fn.RequiredParams(); len(args) < required {
		a.report(diag.TooFewArguments, pos, "too few arguments for %s: expecting %d but saw %d", name, required, len(args))
	}
	if !fn.IsVariadic() && len(args) > len(fn.Params) {
		a.report(diag.TooManyArguments, pos, "too many arguments for %s: expecting %d but saw %d", name, len(fn.Params), len(args))
	}

	for i, at := range argTypes {
		p, ok := paramFor(fn, i)
		if !ok || !p.HasType {
			continue
		}
		template.Infer(a.cb, a.replace(p.Type, bound), at, bound)
	}
	for i, at := range argTypes {
		p, ok := paramFor(fn, i)
		if !ok || !p.HasType || len(p.Type.Types) == 0 {
			continue
		}
		a.checkArg(name, i, a.replace(p.Type, bound), at, args[i].Pos())
	}
	return bound
}

func (a *analyzer) checkArg(fnName string, i int, param, arg ttype.TUnion, pos source.LineCol) {
	if param.IsMixed() || len(arg.Types) == 0 {
		return
	}
	if arg.HasMixed() {
		a.report(diag.MixedArgument, pos, "argument %d of %s cannot be mixed, expecting %s", i+1, fnName, a.format(param))
		return
	}
	var res comparator.ComparisonResult
	if comparator.UnionIsContainedBy(a.cb, arg, param, false, false, &res) {
		return
	}
	switch {
	case res.Coerced(), a.someContained(arg, param),
		arg.IsNullable() && comparator.UnionIsContainedBy(a.cb, arg, param, true, false, nil):
		a.report(diag.PossiblyInvalidArgument, pos, "argument %d of %s expects %s, possibly different type %s provided", i+1, fnName, a.format(param), a.format(arg))
	default:
		a.report(diag.InvalidArgument, pos, "argument %d of %s expects %s, %s provided", i+1, fnName, a.format(param), a.format(arg))
	}
}

// returnOf is the type a call to fn produces. Templates left unbound take
// their fallback.
func (a *analyzer) returnOf(fn *codex.FunctionLikeMetadata, bound *template.Result, self *ttype.TNamedObject) ttype.TUnion {
	if !fn.HasReturnType || len(fn.ReturnType.Types) == 0 {
		return ttype.Mixed()
	}
	if fn.ReturnType.IsVoid() {
		return ttype.Null()
	}
	ret := a.replace(fn.ReturnType, bound)
	if ret.HasTemplate() && len(fn.TemplateTypes) > 0 {
		rest := template.NewResult()
		for _, tpl := range fn.TemplateTypes {
			if _, ok := bound.Get(tpl.Name, tpl.DefiningEntity); !ok {
				rest.Add(a.cb, tpl.Name, tpl.DefiningEntity, template.Fallback(tpl))
			}
		}
		ret = template.Replace(a.cb, ret, rest)
	}
	if self != nil {
		ret = replaceThis(ret, *self)
	}
	ret.FromTemplateDefault = false
	return ret
}
