package analyzer

import (
	"maps"
	"slices"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/ttype"
	"tephra/internal/ttype/comparator"
	"tephra/internal/ttype/template"
)

// checkDeclaration reports hierarchy problems of the unit's class-like:
// cycles, broken dependencies, unimplemented abstract methods and
// incompatible overrides.
func (a *analyzer) checkDeclaration() {
	meta := a.unit.class
	name := a.in.String(meta.Name)
	pos := a.unit.pos

	if meta.State == codex.Invalid {
		a.report(diag.CircularInheritance, pos, "%s inherits from itself", name)
	}
	for _, dep := range meta.InvalidDependencies {
		depName := a.dependencyName(meta, dep)
		other := a.cb.ClassLikes[dep]
		switch {
		case other == nil:
			a.report(diag.MissingDependency, pos, "%s depends on %s, which does not exist", name, depName)
		case slices.ContainsFunc(meta.UsedTraits, func(t atom.Atom) bool { return a.in.Lower(t) == dep }):
			a.report(diag.InvalidTraitUse, pos, "%s uses %s, which is a %s and not a trait", name, depName, other.Kind)
		default:
			a.report(diag.InvalidExtendClass, pos, "%s cannot extend or implement %s %s", name, other.Kind, depName)
		}
	}
	if meta.State == codex.Invalid {
		return
	}

	if !meta.IsInterface() && !meta.IsTrait() && !meta.IsAbstract() {
		for _, mkey := range slices.Sorted(maps.Keys(meta.DeclaringMethodIDs)) {
			id := meta.DeclaringMethodIDs[mkey]
			if id.Class != meta.Key {
				a.signatureReference(id.Key())
			}
			m := a.cb.MethodByID(id)
			if m == nil || !m.IsAbstract() {
				continue
			}
			a.report(diag.UnimplementedAbstractMethod, pos, "%s must implement the abstract method %s", name, a.fnName(m))
		}
	}
	a.checkOverrides(meta)
}

// dependencyName finds the name of a folded dependency as written.
func (a *analyzer) dependencyName(meta *codex.ClassLikeMetadata, dep atom.Atom) string {
	candidates := append([]atom.Atom{meta.DirectParentClass}, meta.DirectParentInterfaces...)
	candidates = append(candidates, meta.UsedTraits...)
	for _, c := range candidates {
		if c != atom.Empty && a.in.Lower(c) == dep {
			return a.in.String(c)
		}
	}
	return a.in.String(dep)
}

// checkOverrides compares each own method with the methods it overrides: the
// override may not require more arguments and must return a subtype.
func (a *analyzer) checkOverrides(meta *codex.ClassLikeMetadata) {
	self := ttype.TNamedObject{Name: meta.Name, IsThis: true}
	for _, mkey := range slices.Sorted(maps.Keys(meta.OverriddenMethodIDs)) {
		m := meta.Methods[mkey]
		if m == nil || m.DefiningClass != meta.Key {
			continue
		}
		for _, parentKey := range meta.OverriddenMethodIDs[mkey].Sorted() {
			// the check reads the parent's signature, so its edits re-run this unit
			a.signatureReference(codex.Member(parentKey, mkey))
			parent := a.cb.ClassLikes[parentKey]
			if parent == nil {
				continue
			}
			pm := parent.Methods[mkey]
			if pm == nil || pm.Visibility == codex.Private {
				continue
			}
			if m.RequiredParams() > pm.RequiredParams() {
				a.report(diag.MethodSignatureMismatch, m.Location.Pos, "%s requires %d arguments, but the overridden %s requires %d",
					a.fnName(m), m.RequiredParams(), a.fnName(pm), pm.RequiredParams())
			}
			if !m.HasReturnType || !pm.HasReturnType {
				continue
			}
			parentRet := replaceThis(template.Replace(a.cb, pm.ReturnType, a.extendedTemplates(meta, parentKey)), self)
			childRet := m.ReturnType
			if parentRet.IsMixed() || parentRet.HasTemplate() || childRet.HasTemplate() {
				continue
			}
			if !comparator.UnionIsContainedBy(a.cb, childRet, parentRet, false, false, nil) {
				a.report(diag.MethodSignatureMismatch, m.Location.Pos, "return type %s of %s is not compatible with %s of the overridden %s",
					a.format(childRet), a.fnName(m), a.format(parentRet), a.fnName(pm))
			}
		}
	}
}

// extendedTemplates binds the templates of ancestor as meta extends them.
func (a *analyzer) extendedTemplates(meta *codex.ClassLikeMetadata, ancestor atom.Atom) *template.Result {
	r := template.NewResult()
	for name, u := range meta.TemplateExtendedParameters[ancestor] {
		r.Add(a.cb, name, ancestor, u)
	}
	return r
}
