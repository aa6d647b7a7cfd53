package expander

import (
	"slices"
	"strings"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// maxDepth bounds alias and constant chains; a cyclic alias stays unresolved.
const maxDepth = 10

// TypeExpansionOptions describes the context a type is expanded in.
type TypeExpansionOptions struct {
	SelfClass       atom.Atom
	StaticClassType ttype.Atomic
	ParentClass     atom.Atom

	FunctionIsFinal        bool
	EvaluateClassConstants bool
	ExpandGeneric          bool
	ExpandDerived          bool
}

type expander struct {
	cb   *codex.CodebaseMetadata
	in   *atom.Interner
	opts *TypeExpansionOptions

	self, static, parent atom.Atom

	depth int
}

func newExpander(cb *codex.CodebaseMetadata, opts *TypeExpansionOptions) *expander {
	if opts == nil {
		opts = &TypeExpansionOptions{}
	}
	in := cb.Interner
	return &expander{
		cb:     cb,
		in:     in,
		opts:   opts,
		self:   in.Intern("self"),
		static: in.Intern("static"),
		parent: in.Intern("parent"),
	}
}

// ExpandUnion resolves u in place and recombines it. Flags on u are kept.
func ExpandUnion(cb *codex.CodebaseMetadata, u *ttype.TUnion, opts *TypeExpansionOptions) {
	newExpander(cb, opts).union(u)
}

// Expanded returns an expanded copy of u.
func Expanded(cb *codex.CodebaseMetadata, u ttype.TUnion, opts *TypeExpansionOptions) ttype.TUnion {
	return newExpander(cb, opts).expanded(u)
}

func (e *expander) union(u *ttype.TUnion) {
	if len(u.Types) == 0 {
		return
	}
	var out []ttype.Atomic
	for _, a := range u.Types {
		out = append(out, e.atomic(a)...)
	}
	u.Types = combiner.Combine(out, e.cb, false)
}

func (e *expander) expanded(u ttype.TUnion) ttype.TUnion {
	out := u
	e.union(&out)
	return out
}

// nested expands declarations that belong to meta: self there means meta.
func (e *expander) nested(meta *codex.ClassLikeMetadata) *expander {
	opts := *e.opts
	opts.SelfClass = meta.Key
	opts.ParentClass = meta.DirectParentClass
	sub := *e
	sub.opts = &opts
	sub.depth++
	return &sub
}

func (e *expander) atomic(a ttype.Atomic) []ttype.Atomic {
	switch t := a.(type) {
	case ttype.TNamedObject:
		return []ttype.Atomic{e.namedObject(t)}
	case ttype.TEnum:
		if meta := e.cb.ClassLike(e.className(t.Name)); meta != nil {
			t.Name = meta.Name
		}
		return []ttype.Atomic{t}
	case ttype.TList:
		t.Element = e.expanded(t.Element)
		t.Known = slices.Clone(t.Known)
		for i := range t.Known {
			t.Known[i].Type = e.expanded(t.Known[i].Type)
		}
		return []ttype.Atomic{t}
	case ttype.TKeyedArray:
		return []ttype.Atomic{e.keyed(t)}
	case ttype.TMemberReference:
		return e.memberReference(t)
	case ttype.TAlias:
		return e.alias(t)
	case ttype.TGenericParameter:
		t.Constraint = e.expanded(t.Constraint)
		if e.opts.ExpandGeneric && len(t.Constraint.Types) > 0 {
			return t.Constraint.Types
		}
		return []ttype.Atomic{t}
	case ttype.TDerived:
		t.Target = e.expanded(t.Target)
		t.Index = e.expanded(t.Index)
		if e.opts.ExpandDerived {
			if u, ok := ReduceDerived(e.cb, t); ok {
				return u.Types
			}
		}
		return []ttype.Atomic{t}
	}
	return []ttype.Atomic{a}
}

// className resolves self, static and parent against the options.
func (e *expander) className(name atom.Atom) atom.Atom {
	switch e.in.Lower(name) {
	case e.self, e.static:
		if e.opts.SelfClass != atom.Empty {
			return e.opts.SelfClass
		}
	case e.parent:
		if e.opts.ParentClass != atom.Empty {
			return e.opts.ParentClass
		}
	}
	return name
}

func (e *expander) namedObject(t ttype.TNamedObject) ttype.Atomic {
	if e.in.Lower(t.Name) == e.static {
		switch st := e.opts.StaticClassType.(type) {
		case ttype.TNamedObject:
			if len(t.TypeParams) > 0 {
				st.TypeParams = t.TypeParams
			}
			st.IsThis = st.IsThis && t.IsThis
			t = st
		case ttype.TEnum:
			return e.atomic(st)[0]
		default:
			if e.opts.SelfClass != atom.Empty {
				t.Name = e.opts.SelfClass
				t.IsThis = t.IsThis && !e.opts.FunctionIsFinal && !e.cb.IsEnumOrFinal(t.Name)
			}
		}
	} else {
		t.Name = e.className(t.Name)
	}

	if meta := e.cb.ClassLike(t.Name); meta != nil {
		t.Name = meta.Name
		if meta.IsEnum() {
			return ttype.TEnum{Name: meta.Name}
		}
	}
	if len(t.TypeParams) > 0 {
		params := make([]ttype.TUnion, len(t.TypeParams))
		for i, p := range t.TypeParams {
			params[i] = e.expanded(p)
		}
		t.TypeParams = params
	}
	return t
}

func (e *expander) keyed(t ttype.TKeyedArray) ttype.TKeyedArray {
	out := ttype.TKeyedArray{NonEmpty: t.NonEmpty}
	var lostKeys, lostValues []ttype.Atomic
	lostRequired := false
	for _, it := range t.Known {
		it.Type = e.expanded(it.Type)
		if it.Key.Kind == ttype.KeyClassConstant {
			k, ok := e.classConstantKey(it.Key)
			if !ok {
				// unresolved keys widen into the parameters
				lostKeys = append(lostKeys, ttype.TArrayKey{})
				lostValues = append(lostValues, it.Type.Types...)
				lostRequired = lostRequired || !it.Optional
				continue
			}
			it.Key = k
		}
		out.Known = append(out.Known, it)
	}
	slices.SortStableFunc(out.Known, func(a, b ttype.KnownItem) int { return a.Key.Compare(b.Key) })
	out.Known = dedupLast(out.Known)

	if t.Params != nil || len(lostKeys) > 0 {
		p := &ttype.KeyedParams{}
		var keys, values []ttype.Atomic
		if t.Params != nil {
			keys = append(keys, e.expanded(t.Params.Key).Types...)
			values = append(values, e.expanded(t.Params.Value).Types...)
		}
		p.Key = ttype.TUnion{Types: combiner.Combine(append(keys, lostKeys...), e.cb, false)}
		p.Value = ttype.TUnion{Types: combiner.Combine(append(values, lostValues...), e.cb, false)}
		out.Params = p
	}
	if lostRequired && !slices.ContainsFunc(out.Known, func(it ttype.KnownItem) bool { return !it.Optional }) {
		out.NonEmpty = true
	}
	return out
}

func (e *expander) classConstantKey(k ttype.ArrayKey) (ttype.ArrayKey, bool) {
	u, ok := e.cb.ClassConstantType(e.className(k.Class), k.Constant)
	if !ok {
		return k, false
	}
	switch lit := firstOnly(u).(type) {
	case ttype.TInt:
		if lit.IsLiteral() {
			return ttype.IntKey(lit.Lo), true
		}
	case ttype.TString:
		if lit.Literal {
			return ttype.StringKey(lit.Value), true
		}
	}
	return k, false
}

// dedupLast keeps the last of each run of equal keys.
func dedupLast(items []ttype.KnownItem) []ttype.KnownItem {
	out := items[:0]
	for i, it := range items {
		if i+1 < len(items) && items[i+1].Key == it.Key {
			continue
		}
		out = append(out, it)
	}
	return out
}

func firstOnly(u ttype.TUnion) ttype.Atomic {
	if a, ok := u.Only(); ok {
		return a
	}
	return nil
}

func (e *expander) memberReference(t ttype.TMemberReference) []ttype.Atomic {
	t.Class = e.className(t.Class)
	meta := e.cb.ClassLike(t.Class)
	if meta == nil || !e.opts.EvaluateClassConstants || e.depth >= maxDepth {
		return []ttype.Atomic{t}
	}
	sub := e.nested(meta)

	member := e.in.String(t.Member)
	prefix, wildcard := strings.CutSuffix(member, "*")
	if !wildcard {
		u, ok := e.cb.ClassConstantType(meta.Key, t.Member)
		if !ok {
			return []ttype.Atomic{t}
		}
		return sub.expanded(u).Types
	}

	var out []ttype.Atomic
	if meta.IsEnum() {
		for _, c := range meta.CaseOrder {
			if strings.HasPrefix(e.in.String(c), prefix) {
				out = append(out, ttype.TEnum{Name: meta.Name, Case: c})
			}
		}
	}
	names := make([]string, 0, len(meta.Constants))
	for name := range meta.Constants {
		if s := e.in.String(name); strings.HasPrefix(s, prefix) {
			names = append(names, s)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		u, _ := e.cb.ClassConstantType(meta.Key, e.in.Intern(name))
		out = append(out, sub.expanded(u).Types...)
	}
	if len(out) == 0 {
		return []ttype.Atomic{t}
	}
	return out
}

func (e *expander) alias(t ttype.TAlias) []ttype.Atomic {
	if e.depth >= maxDepth {
		return []ttype.Atomic{t}
	}
	meta := e.cb.ClassLike(e.className(t.Class))
	if meta == nil {
		return []ttype.Atomic{t}
	}
	if u, ok := meta.TypeAliases[t.Name]; ok {
		return e.nested(meta).expanded(u).Types
	}
	if imp, ok := meta.ImportedTypeAliases[t.Name]; ok {
		sub := *e
		sub.depth++
		return sub.alias(ttype.TAlias{Class: imp.From, Name: imp.Name})
	}
	return []ttype.Atomic{t}
}
