package analyzer

import (
	"strings"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
)

func (a *analyzer) expr(ctx *blockContext, e syntax.Expr) ttype.TUnion {
	switch x := e.(type) {
	case syntax.IntLit:
		return ttype.Single(ttype.IntLit(x.Value))
	case syntax.FloatLit:
		return ttype.Single(ttype.FloatLit(x.Value))
	case syntax.StringLit:
		return ttype.Single(ttype.StringLit(a.in.Intern(x.Value)))
	case syntax.BoolLit:
		if x.Value {
			return ttype.Single(ttype.TBool{Value: ttype.BoolTrue})
		}
		return ttype.Single(ttype.TBool{Value: ttype.BoolFalse})
	case syntax.NullLit:
		return ttype.Null()
	case syntax.Var:
		return a.variable(ctx, x)
	case syntax.ArrayLit:
		return a.arrayLit(ctx, x)
	case syntax.New:
		return a.newExpr(ctx, x)
	case syntax.Call:
		return a.call(ctx, x)
	case syntax.MethodCall:
		return a.methodCall(ctx, x)
	case syntax.StaticCall:
		return a.staticCall(ctx, x)
	case syntax.PropFetch:
		return a.propFetch(ctx, x)
	case syntax.ConstFetch:
		return a.constFetch(x)
	case syntax.Index:
		return a.index(ctx, x)
	case syntax.Binary:
		return a.binary(ctx, x)
	case syntax.Not:
		a.expr(ctx, x.Expr)
		return ttype.Bool()
	case syntax.InstanceOf:
		a.expr(ctx, x.Expr)
		a.resolveClass(x.Class, x.Pos())
		return ttype.Bool()
	case syntax.Ternary:
		a.expr(ctx, x.Cond)
		then := a.expr(a.narrow(ctx.clone(), x.Cond, true), x.Then)
		els := a.expr(a.narrow(ctx.clone(), x.Cond, false), x.Else)
		return a.combine(then, els)
	}
	return ttype.Mixed()
}

func (a *analyzer) args(ctx *blockContext, args []syntax.Expr) []ttype.TUnion {
	out := make([]ttype.TUnion, len(args))
	for i, arg := range args {
		out[i] = a.expr(ctx, arg)
	}
	return out
}

func (a *analyzer) variable(ctx *blockContext, x syntax.Var) ttype.TUnion {
	name := varName(x.Name)
	if name == "this" {
		if t, ok := a.thisType(); ok {
			return ttype.Single(t)
		}
		a.report(diag.UndefinedVariable, x.Pos(), "$this is not available outside an instance method")
		return ttype.Mixed()
	}
	t, ok := ctx.vars[name]
	if !ok {
		a.report(diag.UndefinedVariable, x.Pos(), "cannot find referenced variable $%s", name)
		return ttype.Mixed()
	}
	if t.PossiblyUndefined {
		if !a.settings.AllowPossiblyUndefined {
			a.report(diag.PossiblyUndefinedVariable, x.Pos(), "possibly undefined variable $%s", name)
		}
		t.PossiblyUndefined = false
	}
	return t
}

// thisType is static inside an instance method, parameterized with the
// class's own templates.
func (a *analyzer) thisType() (ttype.TNamedObject, bool) {
	cls, fn := a.unit.class, a.unit.fn
	if cls == nil || fn == nil || fn.IsStatic() {
		return ttype.TNamedObject{}, false
	}
	return a.selfType(cls, true), true
}

func (a *analyzer) selfType(cls *codex.ClassLikeMetadata, isThis bool) ttype.TNamedObject {
	o := ttype.TNamedObject{Name: cls.Name, IsThis: isThis}
	for _, tpl := range cls.TemplateTypes {
		o.TypeParams = append(o.TypeParams, ttype.Single(ttype.TGenericParameter{
			Name:           tpl.Name,
			DefiningEntity: tpl.DefiningEntity,
			Constraint:     tpl.Constraint,
		}))
	}
	return o
}

// resolveClass looks up a class name as written in a body. self, static and
// parent resolve against the enclosing class.
func (a *analyzer) resolveClass(name string, pos source.LineCol) (*codex.ClassLikeMetadata, bool) {
	name = trimName(name)
	cls := a.unit.class
	switch strings.ToLower(name) {
	case "self", "static":
		if cls == nil {
			a.report(diag.UndefinedClass, pos, "cannot use %s outside a class", name)
			return nil, false
		}
		return cls, true
	case "parent":
		if cls == nil || cls.DirectParentClass == atom.Empty {
			a.report(diag.UndefinedClass, pos, "cannot use parent in a class without a parent")
			return nil, false
		}
		name = a.in.String(cls.DirectParentClass)
	}
	n := a.in.Intern(name)
	a.bodyReference(codex.TopLevel(a.in.Lower(n)))
	meta := a.cb.ClassLike(n)
	if meta == nil {
		a.report(diag.UndefinedClass, pos, "class %s does not exist", name)
		return nil, false
	}
	return meta, true
}

func (a *analyzer) newExpr(ctx *blockContext, x syntax.New) ttype.TUnion {
	meta, ok := a.resolveClass(x.Class, x.Pos())
	argTypes := a.args(ctx, x.Args)
	if !ok {
		return ttype.Mixed()
	}
	name := a.in.String(meta.Name)
	switch {
	case meta.IsInterface():
		a.report(diag.InterfaceInstantiation, x.Pos(), "interface %s cannot be instantiated", name)
	case meta.IsTrait(), meta.IsEnum(), meta.IsAbstract():
		a.report(diag.AbstractInstantiation, x.Pos(), "%s %s cannot be instantiated", meta.Kind, name)
	}

	obj := ttype.TNamedObject{Name: meta.Name}
	ctorKey := a.in.InternLower("__construct")
	bound := a.newResult()
	if ctor := a.cb.Method(meta.Key, ctorKey); ctor != nil {
		a.methodReference(meta, ctorKey)
		bound = a.checkArgs(ctor, x.Args, argTypes, x.Pos(), bound)
	} else if len(x.Args) > 0 {
		a.report(diag.TooManyArguments, x.Pos(), "%s has no constructor but %d arguments were passed", name, len(x.Args))
	}
	for _, tpl := range meta.TemplateTypes {
		u, ok := bound.Get(tpl.Name, tpl.DefiningEntity)
		if !ok {
			u = fallback(tpl)
		}
		obj.TypeParams = append(obj.TypeParams, u)
	}
	return ttype.Single(obj)
}

func (a *analyzer) call(ctx *blockContext, x syntax.Call) ttype.TUnion {
	name := trimName(x.Function)
	key := a.in.InternLower(name)
	a.bodyReference(codex.TopLevel(key))
	argTypes := a.args(ctx, x.Args)
	fn := a.cb.Functions[key]
	if fn == nil {
		a.report(diag.UndefinedFunction, x.Pos(), "function %s does not exist", name)
		return ttype.Mixed()
	}
	bound := a.checkArgs(fn, x.Args, argTypes, x.Pos(), nil)
	return a.returnOf(fn, bound, nil)
}

func (a *analyzer) methodCall(ctx *blockContext, x syntax.MethodCall) ttype.TUnion {
	obj := a.expr(ctx, x.Object)
	argTypes := a.args(ctx, x.Args)

	var out []ttype.TUnion
	nulls, mixed := 0, false
	for _, at := range obj.Types {
		switch at.(type) {
		case ttype.TNull, ttype.TVoid:
			nulls++
			if x.NullSafe {
				out = append(out, ttype.Null())
			}
			continue
		case ttype.TMixed, ttype.TObject:
			if !mixed {
				a.report(diag.MixedMethodCall, x.Pos(), "cannot determine the type of the object %s is called on", x.Name)
				mixed = true
			}
			out = append(out, ttype.Mixed())
			continue
		}
		out = append(out, a.methodOn(at, x.Name, x.Args, argTypes, x.Pos()))
	}
	a.nullReference(nulls, obj, x.NullSafe, "call method "+x.Name, x.Pos())
	if len(out) == 0 {
		return ttype.Mixed()
	}
	return a.combine(out...)
}

// nullReference reports calls and fetches on values that are or may be null.
func (a *analyzer) nullReference(nulls int, obj ttype.TUnion, nullSafe bool, what string, pos source.LineCol) {
	if nulls == 0 || nullSafe {
		return
	}
	if nulls == len(obj.Types) {
		a.report(diag.NullReference, pos, "cannot %s on null", what)
		return
	}
	a.report(diag.PossiblyNullReference, pos, "cannot %s on possibly null value of type %s", what, a.format(obj))
}

func (a *analyzer) methodOn(at ttype.Atomic, name string, args []syntax.Expr, argTypes []ttype.TUnion, pos source.LineCol) ttype.TUnion {
	switch t := at.(type) {
	case ttype.TNamedObject:
		return a.callMethod(t, name, args, argTypes, pos)
	case ttype.TEnum:
		return a.callMethod(ttype.TNamedObject{Name: t.Name}, name, args, argTypes, pos)
	case ttype.TGenericParameter:
		if len(t.Constraint.Types) == 0 || t.Constraint.IsMixed() {
			return ttype.Mixed()
		}
		var out []ttype.TUnion
		for _, c := range t.Constraint.Types {
			out = append(out, a.methodOn(c, name, args, argTypes, pos))
		}
		return a.combine(out...)
	case ttype.TNever:
		return ttype.Never()
	}
	a.report(diag.UndefinedMethod, pos, "cannot call method %s on %s", name, ttype.FormatAtomic(a.in, at))
	return ttype.Mixed()
}

// methodReference records a body reference to class::method and to the
// class that declares it.
func (a *analyzer) methodReference(meta *codex.ClassLikeMetadata, method atom.Atom) (codex.MethodIdentifier, bool) {
	a.bodyReference(codex.Member(meta.Key, method))
	id, ok := a.cb.DeclaringMethodID(meta.Key, method)
	if ok && id.Class != meta.Key {
		a.bodyReference(id.Key())
	}
	return id, ok
}

func (a *analyzer) callMethod(o ttype.TNamedObject, name string, args []syntax.Expr, argTypes []ttype.TUnion, pos source.LineCol) ttype.TUnion {
	meta := a.cb.ClassLike(o.Name)
	if meta == nil {
		a.bodyReference(codex.TopLevel(a.in.Lower(o.Name)))
		a.report(diag.UndefinedClass, pos, "class %s does not exist", a.in.String(o.Name))
		return ttype.Mixed()
	}
	mkey := a.in.InternLower(name)
	id, ok := a.methodReference(meta, mkey)
	fn := a.cb.Method(meta.Key, mkey)
	if fn == nil {
		a.report(diag.UndefinedMethod, pos, "method %s::%s does not exist", a.in.String(meta.Name), name)
		return ttype.Mixed()
	}
	declaring := meta.Key
	if ok {
		declaring = id.Class
	}
	bound := a.classTemplates(meta, o, declaring)
	bound = a.checkArgs(fn, args, argTypes, pos, bound)
	return a.returnOf(fn, bound, &o)
}

func (a *analyzer) staticCall(ctx *blockContext, x syntax.StaticCall) ttype.TUnion {
	meta, ok := a.resolveClass(x.Class, x.Pos())
	argTypes := a.args(ctx, x.Args)
	if !ok {
		return ttype.Mixed()
	}
	var o ttype.TNamedObject
	switch strings.ToLower(trimName(x.Class)) {
	case "self", "static", "parent":
		// parent::foo() keeps $this
		if this, ok := a.thisType(); ok && meta.Key != a.unit.class.Key {
			o = this
			o.Name = meta.Name
			o.TypeParams = nil
			if ext := a.unit.class.TemplateExtendedParameters[meta.Key]; ext != nil {
				for _, tpl := range meta.TemplateTypes {
					if u, ok := ext[tpl.Name]; ok {
						o.TypeParams = append(o.TypeParams, u)
					}
				}
			}
			break
		}
		o = a.selfType(meta, strings.EqualFold(trimName(x.Class), "static"))
	default:
		o = ttype.TNamedObject{Name: meta.Name}
	}
	return a.callMethod(o, x.Name, x.Args, argTypes, x.Pos())
}

// property resolves meta::$name seen through o and returns its declaration
// and its type with class templates substituted.
func (a *analyzer) property(meta *codex.ClassLikeMetadata, o ttype.TNamedObject, name atom.Atom, pos source.LineCol) (*codex.PropertyMetadata, ttype.TUnion) {
	a.bodyReference(codex.Member(meta.Key, name))
	decl, ok := a.cb.DeclaringPropertyClass(meta.Key, name)
	if !ok {
		a.report(diag.UndefinedProperty, pos, "property %s::$%s does not exist", a.in.String(meta.Name), a.in.String(name))
		return nil, ttype.Mixed()
	}
	if decl != meta.Key {
		a.bodyReference(codex.Member(decl, name))
	}
	p := a.cb.Property(meta.Key, name)
	if p == nil || !p.HasType || len(p.Type.Types) == 0 {
		return p, ttype.Mixed()
	}
	t := a.replace(p.Type, a.classTemplates(meta, o, decl))
	return p, replaceThis(t, o)
}

func (a *analyzer) propFetch(ctx *blockContext, x syntax.PropFetch) ttype.TUnion {
	obj := a.expr(ctx, x.Object)
	name := a.in.Intern(strings.TrimPrefix(x.Name, "$"))

	var out []ttype.TUnion
	nulls := 0
	for _, at := range obj.Types {
		switch t := at.(type) {
		case ttype.TNull, ttype.TVoid:
			nulls++
			if x.NullSafe {
				out = append(out, ttype.Null())
			}
		case ttype.TNamedObject:
			meta := a.cb.ClassLike(t.Name)
			if meta == nil {
				out = append(out, ttype.Mixed())
				continue
			}
			_, pt := a.property(meta, t, name, x.Pos())
			out = append(out, pt)
		case ttype.TNever:
		default:
			out = append(out, ttype.Mixed())
		}
	}
	a.nullReference(nulls, obj, x.NullSafe, "fetch property $"+a.in.String(name), x.Pos())
	if len(out) == 0 {
		return ttype.Mixed()
	}
	return a.combine(out...)
}

func (a *analyzer) constFetch(x syntax.ConstFetch) ttype.TUnion {
	if x.Class == "" {
		name := a.in.Intern(trimName(x.Name))
		a.bodyReference(codex.TopLevel(name))
		c := a.cb.Constant(name)
		if c == nil {
			a.report(diag.UndefinedConstant, x.Pos(), "constant %s is not defined", trimName(x.Name))
			return ttype.Mixed()
		}
		if len(c.Type.Types) == 0 {
			return ttype.Mixed()
		}
		return c.Type
	}
	meta, ok := a.resolveClass(x.Class, x.Pos())
	if !ok {
		return ttype.Mixed()
	}
	if strings.EqualFold(x.Name, "class") {
		return ttype.Single(ttype.TString{NonEmpty: true})
	}
	name := a.in.Intern(x.Name)
	a.bodyReference(codex.Member(meta.Key, name))
	t, ok := a.cb.ClassConstantType(meta.Key, name)
	if !ok {
		a.report(diag.UndefinedConstant, x.Pos(), "constant %s::%s is not defined", a.in.String(meta.Name), x.Name)
		return ttype.Mixed()
	}
	return t
}

func (a *analyzer) binary(ctx *blockContext, x syntax.Binary) ttype.TUnion {
	switch x.Op {
	case "??":
		// the left side may be undefined or null without an issue
		a.quiet++
		l := a.expr(ctx, x.Left)
		a.quiet--
		r := a.expr(ctx, x.Right)
		if l.IsNull() {
			return r
		}
		return a.combine(l.WithoutNull(), r)
	case "&&", "and":
		a.expr(ctx, x.Left)
		a.expr(a.narrow(ctx.clone(), x.Left, true), x.Right)
		return ttype.Bool()
	case "||", "or":
		a.expr(ctx, x.Left)
		a.expr(a.narrow(ctx.clone(), x.Left, false), x.Right)
		return ttype.Bool()
	}

	l := a.expr(ctx, x.Left)
	r := a.expr(ctx, x.Right)
	switch x.Op {
	case "==", "!=", "===", "!==", "<", ">", "<=", ">=", "<>":
		return ttype.Bool()
	case "<=>":
		return ttype.Single(ttype.IntRangeOf(-1, 1))
	case ".":
		return ttype.String()
	case "+", "-", "*", "/", "%", "**":
		return arithmetic(x.Op, l, r)
	}
	return ttype.Mixed()
}

func arithmetic(op string, l, r ttype.TUnion) ttype.TUnion {
	if op == "%" {
		return ttype.Int()
	}
	li, lf := numericKinds(l)
	ri, rf := numericKinds(r)
	switch {
	case op == "/":
	case !lf && !rf:
		return ttype.Int()
	case !li && !ri:
		return ttype.Float()
	}
	return ttype.Union(ttype.TInt{}, ttype.TFloat{})
}

// numericKinds reports whether u may produce an int and a float operand.
func numericKinds(u ttype.TUnion) (ints, floats bool) {
	for _, at := range u.Types {
		switch at.(type) {
		case ttype.TInt, ttype.TBool, ttype.TNull:
			ints = true
		case ttype.TFloat:
			floats = true
		default:
			return true, true
		}
	}
	return ints, floats
}
