package template

import (
	"slices"

	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// Infer binds the templates mentioned in param from the argument type.
func Infer(cb *codex.CodebaseMetadata, param, arg ttype.TUnion, r *Result) {
	if len(arg.Types) == 0 {
		return
	}
	var concrete []ttype.Atomic
	for _, p := range param.Types {
		if p.Kind() != ttype.KindGenericParameter {
			concrete = append(concrete, p)
		}
	}
	for _, p := range param.Types {
		switch t := p.(type) {
		case ttype.TGenericParameter:
			// T|null against int|null binds T to int
			rest := arg.Filter(func(a ttype.Atomic) bool {
				return !slices.ContainsFunc(concrete, func(c ttype.Atomic) bool { return ttype.Equal(a, c) })
			})
			if !rest.IsNever() {
				r.Add(cb, t.Name, t.DefiningEntity, ttype.TUnion{Types: rest.Types})
			}
		case ttype.TList:
			for _, a := range arg.Types {
				inferArray(cb, nil, t.Element, a, r)
			}
		case ttype.TKeyedArray:
			for _, a := range arg.Types {
				inferKeyed(cb, t, a, r)
			}
		case ttype.TNamedObject:
			if len(t.TypeParams) == 0 {
				continue
			}
			for _, a := range arg.Types {
				inferObject(cb, t, a, r)
			}
		}
	}
}

func inferArray(cb *codex.CodebaseMetadata, key *ttype.TUnion, value ttype.TUnion, a ttype.Atomic, r *Result) {
	keys, values, ok := arrayParts(a)
	if !ok {
		return
	}
	if key != nil && len(keys) > 0 {
		Infer(cb, *key, ttype.TUnion{Types: combiner.Combine(keys, cb, false)}, r)
	}
	if len(values) > 0 {
		Infer(cb, value, ttype.TUnion{Types: combiner.Combine(values, cb, false)}, r)
	}
}

func inferKeyed(cb *codex.CodebaseMetadata, p ttype.TKeyedArray, a ttype.Atomic, r *Result) {
	if arg, ok := a.(ttype.TKeyedArray); ok {
		for _, it := range p.Known {
			if got, ok := arg.Item(it.Key); ok {
				Infer(cb, it.Type, got.Type, r)
			}
		}
	}
	if p.Params != nil {
		inferArray(cb, &p.Params.Key, p.Params.Value, a, r)
	}
}

// arrayParts flattens an array argument into its key and value atomics.
func arrayParts(a ttype.Atomic) (keys, values []ttype.Atomic, ok bool) {
	switch t := a.(type) {
	case ttype.TList:
		for _, e := range t.Known {
			keys = append(keys, ttype.IntLit(int64(e.Index)))
			values = append(values, e.Type.Types...)
		}
		if !t.Closed() {
			keys = append(keys, ttype.IntFromOf(0))
			values = append(values, t.Element.Types...)
		}
		return keys, values, true
	case ttype.TKeyedArray:
		for _, it := range t.Known {
			keys = append(keys, it.Key.Atomic())
			values = append(values, it.Type.Types...)
		}
		if t.Params != nil {
			keys = append(keys, t.Params.Key.Types...)
			values = append(values, t.Params.Value.Types...)
		}
		return keys, values, true
	}
	return nil, nil, false
}

func inferObject(cb *codex.CodebaseMetadata, p ttype.TNamedObject, a ttype.Atomic, r *Result) {
	arg, ok := a.(ttype.TNamedObject)
	if !ok {
		return
	}
	pmeta := cb.ClassLike(p.Name)
	ameta := cb.ClassLike(arg.Name)
	if pmeta == nil || ameta == nil {
		if cb.Interner.Lower(p.Name) == cb.Interner.Lower(arg.Name) {
			for i := range min(len(p.TypeParams), len(arg.TypeParams)) {
				Infer(cb, p.TypeParams[i], arg.TypeParams[i], r)
			}
		}
		return
	}
	if !cb.IsInstanceOf(ameta.Key, pmeta.Key) {
		return
	}
	for i, tpl := range pmeta.TemplateTypes {
		if i >= len(p.TypeParams) {
			break
		}
		got, ok := SpecializedTemplateType(cb, tpl.Name, pmeta.Key, ameta, arg.TypeParams)
		if !ok || got.FromTemplateDefault {
			continue
		}
		Infer(cb, p.TypeParams[i], got, r)
	}
}
