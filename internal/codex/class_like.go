package codex

import (
	"tephra/internal/atom"
	"tephra/internal/ttype"
)

// ImportedAlias is an alias imported from another class.
type ImportedAlias struct {
	From atom.Atom `msgpack:"from"` // folded source class
	Name atom.Atom `msgpack:"name"` // alias name in the source class
}

// ClassLikeMetadata is everything known about a class, interface, trait or
// enum. Relation lists keep names as written; the All* closures, the method
// bookkeeping maps and the descendant sets use folded names.
type ClassLikeMetadata struct {
	Name     atom.Atom       `msgpack:"name"` // display name
	Key      atom.Atom       `msgpack:"key"`  // folded
	Kind     ClassKind       `msgpack:"kind"`
	Flags    ClassFlags      `msgpack:"flags"`
	State    PopulationState `msgpack:"state"`
	Location Location        `msgpack:"loc"`

	DirectParentClass      atom.Atom               `msgpack:"parent"`
	DirectParentInterfaces []atom.Atom             `msgpack:"interfaces"`
	UsedTraits             []atom.Atom             `msgpack:"traits"`
	TraitAliasMap          map[atom.Atom]atom.Atom `msgpack:"trait_aliases"` // folded alias -> folded method
	RequireExtends         []atom.Atom             `msgpack:"require_extends"`
	RequireImplements      []atom.Atom             `msgpack:"require_implements"`
	Mixins                 []atom.Atom             `msgpack:"mixins"`
	PermittedInheritors    []atom.Atom             `msgpack:"inheritors"`

	AllParentClasses    atom.Set `msgpack:"all_parents"`
	AllParentInterfaces atom.Set `msgpack:"all_interfaces"`
	AllUsedTraits       atom.Set `msgpack:"all_traits"`

	Methods    map[atom.Atom]*FunctionLikeMetadata  `msgpack:"methods"` // folded name
	Properties map[atom.Atom]*PropertyMetadata      `msgpack:"properties"`
	Constants  map[atom.Atom]*ClassConstantMetadata `msgpack:"constants"`
	EnumCases  map[atom.Atom]*EnumCaseMetadata      `msgpack:"cases"`
	// CaseOrder keeps enum cases in declaration order.
	CaseOrder       []atom.Atom  `msgpack:"case_order"`
	EnumBackingType ttype.TUnion `msgpack:"backing"`

	DeclaringMethodIDs          map[atom.Atom]MethodIdentifier `msgpack:"declaring_methods"`
	AppearingMethodIDs          map[atom.Atom]MethodIdentifier `msgpack:"appearing_methods"`
	InheritableMethodIDs        map[atom.Atom]MethodIdentifier `msgpack:"inheritable_methods"`
	OverriddenMethodIDs         map[atom.Atom]atom.Set         `msgpack:"overridden_methods"`
	PotentialDeclaringMethodIDs map[atom.Atom]atom.Set         `msgpack:"potential_declaring"`

	DeclaringPropertyIDs   map[atom.Atom]atom.Atom `msgpack:"declaring_props"`
	AppearingPropertyIDs   map[atom.Atom]atom.Atom `msgpack:"appearing_props"`
	InheritablePropertyIDs map[atom.Atom]atom.Atom `msgpack:"inheritable_props"`

	TemplateTypes []TemplateType `msgpack:"templates"`
	// TemplateExtendedOffsets holds the raw arguments of @extends / @implements
	// per folded parent, in template order.
	TemplateExtendedOffsets map[atom.Atom][]ttype.TUnion `msgpack:"extended_offsets"`
	// TemplateExtendedParameters maps folded ancestor -> template name -> type.
	TemplateExtendedParameters map[atom.Atom]map[atom.Atom]ttype.TUnion `msgpack:"extended_params"`

	TypeAliases         map[atom.Atom]ttype.TUnion  `msgpack:"aliases"`
	ImportedTypeAliases map[atom.Atom]ImportedAlias `msgpack:"imported_aliases"`

	// InvalidDependencies lists folded names of parents, interfaces or traits
	// that are missing or of the wrong kind.
	InvalidDependencies []atom.Atom `msgpack:"invalid_deps"`
}

// NewClassLike returns metadata with every map allocated.
func NewClassLike(name, key atom.Atom, kind ClassKind) *ClassLikeMetadata {
	return &ClassLikeMetadata{
		Name:                        name,
		Key:                         key,
		Kind:                        kind,
		TraitAliasMap:               map[atom.Atom]atom.Atom{},
		AllParentClasses:            atom.NewSet(),
		AllParentInterfaces:         atom.NewSet(),
		AllUsedTraits:               atom.NewSet(),
		Methods:                     map[atom.Atom]*FunctionLikeMetadata{},
		Properties:                  map[atom.Atom]*PropertyMetadata{},
		Constants:                   map[atom.Atom]*ClassConstantMetadata{},
		EnumCases:                   map[atom.Atom]*EnumCaseMetadata{},
		DeclaringMethodIDs:          map[atom.Atom]MethodIdentifier{},
		AppearingMethodIDs:          map[atom.Atom]MethodIdentifier{},
		InheritableMethodIDs:        map[atom.Atom]MethodIdentifier{},
		OverriddenMethodIDs:         map[atom.Atom]atom.Set{},
		PotentialDeclaringMethodIDs: map[atom.Atom]atom.Set{},
		DeclaringPropertyIDs:        map[atom.Atom]atom.Atom{},
		AppearingPropertyIDs:        map[atom.Atom]atom.Atom{},
		InheritablePropertyIDs:      map[atom.Atom]atom.Atom{},
		TemplateExtendedOffsets:     map[atom.Atom][]ttype.TUnion{},
		TemplateExtendedParameters:  map[atom.Atom]map[atom.Atom]ttype.TUnion{},
		TypeAliases:                 map[atom.Atom]ttype.TUnion{},
		ImportedTypeAliases:         map[atom.Atom]ImportedAlias{},
	}
}

func (c *ClassLikeMetadata) IsInterface() bool { return c.Kind == KindInterface }
func (c *ClassLikeMetadata) IsTrait() bool     { return c.Kind == KindTrait }
func (c *ClassLikeMetadata) IsEnum() bool      { return c.Kind == KindEnum }
func (c *ClassLikeMetadata) IsAbstract() bool  { return c.Flags.Has(FlagAbstract) }
func (c *ClassLikeMetadata) IsFinal() bool     { return c.Flags.Has(FlagFinal) }

// AddPotentialDeclaringMethod records that class may declare method.
func (c *ClassLikeMetadata) AddPotentialDeclaringMethod(method, class atom.Atom) {
	s, ok := c.PotentialDeclaringMethodIDs[method]
	if !ok {
		s = atom.NewSet()
		c.PotentialDeclaringMethodIDs[method] = s
	}
	s.Add(class)
}

// AddOverriddenMethod records that method overrides the one in class.
func (c *ClassLikeMetadata) AddOverriddenMethod(method, class atom.Atom) {
	s, ok := c.OverriddenMethodIDs[method]
	if !ok {
		s = atom.NewSet()
		c.OverriddenMethodIDs[method] = s
	}
	s.Add(class)
}

// AddInvalidDependency records a folded name once.
func (c *ClassLikeMetadata) AddInvalidDependency(key atom.Atom) {
	for _, d := range c.InvalidDependencies {
		if d == key {
			return
		}
	}
	c.InvalidDependencies = append(c.InvalidDependencies, key)
}

// Template returns the class template named name.
func (c *ClassLikeMetadata) Template(name atom.Atom) (TemplateType, int, bool) {
	for i, t := range c.TemplateTypes {
		if t.Name == name {
			return t, i, true
		}
	}
	return TemplateType{}, -1, false
}

// HasOwnMethod reports a method written in this class's body.
func (c *ClassLikeMetadata) HasOwnMethod(key atom.Atom) bool {
	m, ok := c.Methods[key]
	return ok && !m.Flags.Has(FnFromTrait)
}
