// Package template resolves class template parameters and infers function
// templates from call arguments.
package template

import (
	"maps"
	"slices"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/combiner"
)

// SpecializedTemplateType returns the type templateName of definingClass
// takes when seen through inputClass parameterized with inputParams. A
// missing argument falls back to the template default or constraint, marked
// FromTemplateDefault. definingClass is folded.
func SpecializedTemplateType(
	cb *codex.CodebaseMetadata,
	templateName, definingClass atom.Atom,
	inputClass *codex.ClassLikeMetadata,
	inputParams []ttype.TUnion,
) (ttype.TUnion, bool) {
	if inputClass == nil {
		return ttype.TUnion{}, false
	}
	if inputClass.Key == definingClass {
		tpl, i, ok := inputClass.Template(templateName)
		if !ok {
			return ttype.TUnion{}, false
		}
		if i < len(inputParams) {
			return inputParams[i], true
		}
		return Fallback(tpl), true
	}

	ext, ok := inputClass.TemplateExtendedParameters[definingClass][templateName]
	if !ok {
		return ttype.TUnion{}, false
	}
	// the extended type may still name inputClass's own templates
	own := NewResult()
	for i, tpl := range inputClass.TemplateTypes {
		if i < len(inputParams) {
			own.set(tpl.Name, inputClass.Key, inputParams[i])
		} else {
			own.set(tpl.Name, inputClass.Key, Fallback(tpl))
		}
	}
	return Replace(cb, ext, own), true
}

// Fallback is the type a template takes when no argument is given: its
// default, else its constraint, else mixed, marked FromTemplateDefault.
func Fallback(tpl codex.TemplateType) ttype.TUnion {
	out := tpl.Constraint
	if tpl.HasDefault {
		out = tpl.Default
	}
	if len(out.Types) == 0 {
		out = ttype.Mixed()
	}
	out.FromTemplateDefault = true
	return out
}

// Result collects inferred template types by name and defining entity.
type Result struct {
	Types map[atom.Atom]map[atom.Atom]ttype.TUnion
}

func NewResult() *Result {
	return &Result{Types: map[atom.Atom]map[atom.Atom]ttype.TUnion{}}
}

func (r *Result) set(name, def atom.Atom, u ttype.TUnion) {
	m, ok := r.Types[name]
	if !ok {
		m = map[atom.Atom]ttype.TUnion{}
		r.Types[name] = m
	}
	m[def] = u
}

// Add widens the bound of name with u.
func (r *Result) Add(cb *codex.CodebaseMetadata, name, def atom.Atom, u ttype.TUnion) {
	if prev, ok := r.Get(name, def); ok {
		u = combiner.CombineUnions(prev, u, cb, false)
	}
	r.set(name, def, u)
}

func (r *Result) Get(name, def atom.Atom) (ttype.TUnion, bool) {
	u, ok := r.Types[name][def]
	return u, ok
}

// Names lists the inferred template names in atom order.
func (r *Result) Names() []atom.Atom {
	return slices.Sorted(maps.Keys(r.Types))
}
