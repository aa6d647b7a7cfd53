package populator

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/trace"
	"tephra/internal/ttype"
	"tephra/internal/ttype/expander"
)

// expansion is the rewritten signature state of one class or function,
// computed in parallel and applied after every worker has finished reading.
type expansion struct {
	class     *codex.ClassLikeMetadata
	methods   map[atom.Atom]*codex.FunctionLikeMetadata
	props     map[atom.Atom]ttype.TUnion
	constants map[atom.Atom]ttype.TUnion
	templates []codex.TemplateType
	fn        *codex.FunctionLikeMetadata
	refs      *codex.SymbolReferences
}

// expandSignatures resolves self, class constants, aliases and derived types
// in member and function signatures and records the signature references
// they contain.
func expandSignatures(ctx context.Context, cb *codex.CodebaseMetadata, refs *codex.SymbolReferences, jobs int) (int, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "expand_signatures", trace.ParentID(ctx))
	defer span.End("")

	classes := cb.SortedClassKeys()
	functions := sortedAtoms(cb.Functions)
	out := make([]expansion, len(classes)+len(functions))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, min(jobs, len(out))))
	for i, key := range classes {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = expandClass(cb, cb.ClassLikes[key])
			return nil
		})
	}
	for i, key := range functions {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[len(classes)+i] = expandFunction(cb, cb.Functions[key])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	for _, x := range out {
		refs.Merge(x.refs)
		if x.fn != nil {
			cb.Functions[x.fn.Key] = x.fn
			continue
		}
		meta := x.class
		for key, m := range x.methods {
			meta.Methods[key] = m
		}
		for name, t := range x.props {
			meta.Properties[name].Type = t
		}
		for name, t := range x.constants {
			meta.Constants[name].Type = t
		}
		meta.TemplateTypes = x.templates
	}
	span.WithExtra("functions", strconv.Itoa(len(functions)))
	return len(functions), nil
}

type signatureScope struct {
	cb     *codex.CodebaseMetadata
	refs   *codex.SymbolReferences
	opts   expander.TypeExpansionOptions
	self   atom.Atom // folded, empty for functions
	parent atom.Atom // folded
}

func newScope(cb *codex.CodebaseMetadata, meta *codex.ClassLikeMetadata) *signatureScope {
	s := &signatureScope{
		cb:   cb,
		refs: codex.NewSymbolReferences(),
		opts: expander.TypeExpansionOptions{
			EvaluateClassConstants: true,
			ExpandDerived:          true,
		},
	}
	if meta != nil {
		s.self = meta.Key
		s.opts.SelfClass = meta.Name
		s.opts.ParentClass = meta.DirectParentClass
		s.opts.FunctionIsFinal = meta.IsFinal()
		if meta.DirectParentClass != atom.Empty {
			s.parent = cb.Interner.Lower(meta.DirectParentClass)
		}
	}
	return s
}

// expand records the references of u on behalf of from and returns the
// expanded type.
func (s *signatureScope) expand(from codex.SymbolKey, u ttype.TUnion, final bool) ttype.TUnion {
	if len(u.Types) == 0 {
		return u
	}
	s.reference(from, u)
	opts := s.opts
	opts.FunctionIsFinal = opts.FunctionIsFinal || final
	out := expander.Expanded(s.cb, u, &opts)
	s.reference(from, out)
	return out
}

// reference adds a signature edge from -> every class or class member
// mentioned in u.
func (s *signatureScope) reference(from codex.SymbolKey, u ttype.TUnion) {
	in := s.cb.Interner
	class := func(name atom.Atom) atom.Atom {
		key := in.Lower(name)
		switch in.String(key) {
		case "self", "static", "$this":
			return s.self
		case "parent":
			return s.parent
		}
		return key
	}
	add := func(to codex.SymbolKey) {
		if to.Symbol == atom.Empty || to.Symbol == s.self {
			return
		}
		s.refs.AddSignatureReference(from, to)
	}
	for a := range u.Nested() {
		switch t := a.(type) {
		case ttype.TNamedObject:
			add(codex.TopLevel(class(t.Name)))
		case ttype.TEnum:
			add(codex.TopLevel(class(t.Name)))
		case ttype.TAlias:
			add(codex.TopLevel(class(t.Class)))
		case ttype.TMemberReference:
			if isWildcard(in.String(t.Member)) {
				add(codex.TopLevel(class(t.Class)))
			} else {
				add(codex.Member(class(t.Class), t.Member))
			}
		}
	}
}

func isWildcard(member string) bool {
	return len(member) > 0 && member[len(member)-1] == '*'
}

func (s *signatureScope) function(from codex.SymbolKey, fn *codex.FunctionLikeMetadata, final bool) *codex.FunctionLikeMetadata {
	out := fn.Clone()
	for i := range out.Params {
		out.Params[i].Type = s.expand(from, out.Params[i].Type, final)
	}
	out.ReturnType = s.expand(from, out.ReturnType, final)
	out.TemplateTypes = s.templates(from, out.TemplateTypes)
	return out
}

func (s *signatureScope) templates(from codex.SymbolKey, tpls []codex.TemplateType) []codex.TemplateType {
	out := make([]codex.TemplateType, len(tpls))
	for i, t := range tpls {
		t.Constraint = s.expand(from, t.Constraint, false)
		if t.HasDefault {
			t.Default = s.expand(from, t.Default, false)
		}
		out[i] = t
	}
	return out
}

func expandClass(cb *codex.CodebaseMetadata, meta *codex.ClassLikeMetadata) expansion {
	s := newScope(cb, meta)
	x := expansion{
		class:     meta,
		methods:   make(map[atom.Atom]*codex.FunctionLikeMetadata, len(meta.Methods)),
		props:     make(map[atom.Atom]ttype.TUnion, len(meta.Properties)),
		constants: map[atom.Atom]ttype.TUnion{},
		refs:      s.refs,
	}
	top := codex.TopLevel(meta.Key)
	x.templates = s.templates(top, meta.TemplateTypes)
	for _, parent := range sortedAtoms(meta.TemplateExtendedOffsets) {
		for _, t := range meta.TemplateExtendedOffsets[parent] {
			s.reference(top, t)
		}
	}
	for _, key := range sortedAtoms(meta.Methods) {
		m := meta.Methods[key]
		x.methods[key] = s.function(codex.Member(meta.Key, key), m, m.IsFinal())
	}
	for _, name := range sortedAtoms(meta.Properties) {
		x.props[name] = s.expand(codex.Member(meta.Key, name), meta.Properties[name].Type, false)
	}
	// inherited constants are shared with the declaring class, which expands them
	for _, name := range sortedAtoms(meta.Constants) {
		c := meta.Constants[name]
		if c.DeclaringClass == meta.Key {
			x.constants[name] = s.expand(codex.Member(meta.Key, name), c.Type, false)
		}
	}
	return x
}

func expandFunction(cb *codex.CodebaseMetadata, fn *codex.FunctionLikeMetadata) expansion {
	s := newScope(cb, nil)
	return expansion{fn: s.function(codex.TopLevel(fn.Key), fn, false), refs: s.refs}
}
