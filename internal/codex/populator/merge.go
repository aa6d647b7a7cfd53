package populator

import (
	"maps"
	"slices"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
	"tephra/internal/ttype/template"
)

const constructor = "__construct"

func sortedAtoms[V any](m map[atom.Atom]V) []atom.Atom {
	return slices.Sorted(maps.Keys(m))
}

// resolve records the child -> parent edge and returns the parent when it
// exists with one of the accepted kinds. Anything else becomes an invalid
// dependency of meta.
func resolve(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, name atom.Atom, refs *codex.SymbolReferences, kinds ...codex.ClassKind) *codex.ClassLikeMetadata {
	key := cb.Interner.Lower(name)
	refs.AddSignatureReference(codex.TopLevel(meta.Key), codex.TopLevel(key))
	p := cb.ClassLikes[key]
	if p == nil || !slices.Contains(kinds, p.Kind) {
		meta.AddInvalidDependency(key)
		return nil
	}
	return p
}

// MergeFromParentClassLike merges the populated class parent into meta.
func MergeFromParentClassLike(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, parent atom.Atom, refs *codex.SymbolReferences) {
	p := resolve(meta, cb, parent, refs, codex.KindClass)
	if p == nil {
		return
	}
	meta.AllParentClasses.Add(p.Key)
	meta.AllParentClasses.AddAll(p.AllParentClasses)
	meta.AllParentInterfaces.AddAll(p.AllParentInterfaces)
	meta.AllUsedTraits.AddAll(p.AllUsedTraits)
	mergeCommon(meta, cb, p)
	if p.Flags.Has(codex.FlagConsistentTemplates) {
		meta.Flags |= codex.FlagConsistentTemplates
	}
	if p.Flags.Has(codex.FlagConsistentConstructor) {
		meta.Flags |= codex.FlagConsistentConstructor
	}
	inheritMethods(meta, cb, p, false)
	inheritProperties(meta, p, false)
}

// MergeFromTrait copies the populated trait into meta. Trait members become
// members of meta itself.
func MergeFromTrait(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, trait atom.Atom, refs *codex.SymbolReferences) {
	p := resolve(meta, cb, trait, refs, codex.KindTrait)
	if p == nil {
		return
	}
	meta.AllUsedTraits.Add(p.Key)
	meta.AllUsedTraits.AddAll(p.AllUsedTraits)
	mergeCommon(meta, cb, p)
	if p.Flags.Has(codex.FlagConsistentTemplates) {
		meta.Flags |= codex.FlagConsistentTemplates
	}
	inheritMethods(meta, cb, p, true)
	inheritProperties(meta, p, true)
}

// MergeFromRequiredClassLike merges the target of a @require-extends or
// @require-implements into meta the way a parent is merged. A class that
// later uses meta as a trait does not adopt these members.
func MergeFromRequiredClassLike(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, required atom.Atom, refs *codex.SymbolReferences) {
	p := resolve(meta, cb, required, refs, codex.KindClass, codex.KindInterface)
	if p == nil {
		return
	}
	if p.IsInterface() {
		meta.AllParentInterfaces.Add(p.Key)
	} else {
		meta.AllParentClasses.Add(p.Key)
		meta.AllParentClasses.AddAll(p.AllParentClasses)
	}
	meta.AllParentInterfaces.AddAll(p.AllParentInterfaces)
	mergeCommon(meta, cb, p)
	inheritMethods(meta, cb, p, false)
	inheritProperties(meta, p, false)
}

// MergeInterfaceFromParentInterface merges an extended or implemented
// interface into meta.
func MergeInterfaceFromParentInterface(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, iface atom.Atom, refs *codex.SymbolReferences) {
	p := resolve(meta, cb, iface, refs, codex.KindInterface)
	if p == nil {
		return
	}
	meta.AllParentInterfaces.Add(p.Key)
	meta.AllParentInterfaces.AddAll(p.AllParentInterfaces)
	mergeCommon(meta, cb, p)
	inheritMethods(meta, cb, p, false)
	inheritProperties(meta, p, false)
}

// mergeCommon copies constants first-writer-wins and extends the closures
// and template parameters shared by every kind of merge.
func mergeCommon(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, p *codex.ClassLikeMetadata) {
	for name, c := range p.Constants {
		if _, ok := meta.Constants[name]; !ok {
			meta.Constants[name] = c
		}
	}
	for _, d := range p.InvalidDependencies {
		meta.AddInvalidDependency(d)
	}
	meta.Mixins = unionNames(cb, meta.Mixins, p.Mixins)
	meta.PermittedInheritors = unionNames(cb, meta.PermittedInheritors, p.PermittedInheritors)
	extendTemplateParameters(meta, cb, p)
}

func unionNames(cb *codex.CodebaseMetadata, dst, src []atom.Atom) []atom.Atom {
	in := cb.Interner
	for _, s := range src {
		if !slices.ContainsFunc(dst, func(d atom.Atom) bool { return in.Lower(d) == in.Lower(s) }) {
			dst = append(dst, s)
		}
	}
	return dst
}

// aliasedNames returns name plus every trait alias pointing at it.
func aliasedNames(meta *codex.ClassLikeMetadata, name atom.Atom, fromTrait bool) []atom.Atom {
	out := []atom.Atom{name}
	if !fromTrait {
		return out
	}
	for _, alias := range sortedAtoms(meta.TraitAliasMap) {
		if meta.TraitAliasMap[alias] == name && alias != name {
			out = append(out, alias)
		}
	}
	return out
}

func inheritMethods(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, p *codex.ClassLikeMetadata, fromTrait bool) {
	for _, name := range sortedAtoms(p.AppearingMethodIDs) {
		id := p.AppearingMethodIDs[name]
		if fromTrait && id.Class != p.Key {
			// seen through the trait's requirements, not part of the trait
			continue
		}
		for _, alias := range aliasedNames(meta, name, fromTrait) {
			if _, ok := meta.AppearingMethodIDs[alias]; ok {
				continue
			}
			if fromTrait {
				meta.AppearingMethodIDs[alias] = codex.MethodIdentifier{Class: meta.Key, Method: alias}
			} else {
				meta.AppearingMethodIDs[alias] = id
			}
			if meta.HasOwnMethod(alias) {
				meta.PotentialDeclaringMethodIDs[alias] = atom.NewSet(meta.Key)
				continue
			}
			if pot, ok := p.PotentialDeclaringMethodIDs[name]; ok {
				meta.PotentialDeclaringMethodIDs[alias] = pot.Clone()
			}
			meta.AddPotentialDeclaringMethod(alias, meta.Key)
			meta.AddPotentialDeclaringMethod(alias, p.Key)
		}
	}

	ctor := cb.Interner.Intern(constructor)
	for _, name := range sortedAtoms(p.InheritableMethodIDs) {
		id := p.InheritableMethodIDs[name]
		if fromTrait && id.Class != p.Key {
			continue
		}
		if name != ctor || p.Flags.Has(codex.FlagConsistentConstructor) {
			if fromTrait {
				// a concrete trait method is adopted, not overridden
				if m := cb.MethodByID(id); m != nil && m.IsAbstract() {
					meta.AddOverriddenMethod(name, id.Class)
				}
			} else {
				meta.AddOverriddenMethod(name, id.Class)
			}
			if _, ok := meta.OverriddenMethodIDs[name]; ok {
				for c := range p.OverriddenMethodIDs[name].All() {
					meta.AddOverriddenMethod(name, c)
				}
			}
		}

		for _, alias := range aliasedNames(meta, name, fromTrait) {
			if impl, ok := meta.DeclaringMethodIDs[alias]; ok {
				if m := cb.MethodByID(impl); m != nil && !m.IsAbstract() {
					continue
				}
			}
			if fromTrait {
				own := codex.MethodIdentifier{Class: meta.Key, Method: alias}
				meta.DeclaringMethodIDs[alias] = own
				meta.InheritableMethodIDs[alias] = own
				copyTraitMethod(meta, cb, id, alias)
				continue
			}
			meta.DeclaringMethodIDs[alias] = id
			meta.InheritableMethodIDs[alias] = id
		}
	}
}

// copyTraitMethod stores the trait method id under alias in meta.
func copyTraitMethod(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, id codex.MethodIdentifier, alias atom.Atom) {
	src := cb.MethodByID(id)
	if src == nil {
		return
	}
	m := src.Clone()
	m.Flags |= codex.FnFromTrait
	if alias != id.Method {
		m.Key = alias
		m.Name = alias
	}
	meta.Methods[alias] = m
}

func inheritProperties(meta *codex.ClassLikeMetadata, p *codex.ClassLikeMetadata, fromTrait bool) {
	if fromTrait {
		for _, name := range sortedAtoms(p.AppearingPropertyIDs) {
			if p.AppearingPropertyIDs[name] != p.Key {
				continue
			}
			if _, ok := meta.AppearingPropertyIDs[name]; ok {
				continue
			}
			if src := p.Properties[name]; src != nil {
				cp := *src
				cp.DeclaringClass = meta.Key
				meta.Properties[name] = &cp
			}
			meta.AppearingPropertyIDs[name] = meta.Key
			meta.DeclaringPropertyIDs[name] = meta.Key
			meta.InheritablePropertyIDs[name] = meta.Key
		}
		return
	}
	for _, name := range sortedAtoms(p.InheritablePropertyIDs) {
		if _, ok := meta.AppearingPropertyIDs[name]; !ok {
			if a, ok := p.AppearingPropertyIDs[name]; ok {
				meta.AppearingPropertyIDs[name] = a
			} else {
				meta.AppearingPropertyIDs[name] = p.InheritablePropertyIDs[name]
			}
		}
		if _, ok := meta.DeclaringPropertyIDs[name]; !ok {
			if d, ok := p.DeclaringPropertyIDs[name]; ok {
				meta.DeclaringPropertyIDs[name] = d
			} else {
				meta.DeclaringPropertyIDs[name] = p.InheritablePropertyIDs[name]
			}
		}
		if _, ok := meta.InheritablePropertyIDs[name]; !ok {
			meta.InheritablePropertyIDs[name] = p.InheritablePropertyIDs[name]
		}
	}
}

func setExtended(meta *codex.ClassLikeMetadata, ancestor, name atom.Atom, t ttype.TUnion) ttype.TUnion {
	m, ok := meta.TemplateExtendedParameters[ancestor]
	if !ok {
		m = map[atom.Atom]ttype.TUnion{}
		meta.TemplateExtendedParameters[ancestor] = m
	}
	if prev, ok := m[name]; ok {
		return prev
	}
	m[name] = t
	return t
}

// extendTemplateParameters records what each template of p and of p's own
// ancestors means for meta. Explicit @extends arguments win; otherwise a
// template falls back to its default or constraint.
func extendTemplateParameters(meta *codex.ClassLikeMetadata, cb *codex.CodebaseMetadata, p *codex.ClassLikeMetadata) {
	if len(p.TemplateTypes) == 0 {
		for _, anc := range sortedAtoms(p.TemplateExtendedParameters) {
			params := p.TemplateExtendedParameters[anc]
			for _, name := range sortedAtoms(params) {
				setExtended(meta, anc, name, params[name])
			}
		}
		return
	}

	offsets, explicit := meta.TemplateExtendedOffsets[p.Key]
	direct := template.NewResult()
	for i, tpl := range p.TemplateTypes {
		var t ttype.TUnion
		if explicit && i < len(offsets) {
			t = offsets[i]
		} else {
			t = template.Fallback(tpl)
		}
		direct.Add(cb, tpl.Name, p.Key, setExtended(meta, p.Key, tpl.Name, t))
	}
	for _, anc := range sortedAtoms(p.TemplateExtendedParameters) {
		params := p.TemplateExtendedParameters[anc]
		for _, name := range sortedAtoms(params) {
			setExtended(meta, anc, name, template.Replace(cb, params[name], direct))
		}
	}
}
