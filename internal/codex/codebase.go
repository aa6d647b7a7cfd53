package codex

import (
	"slices"

	"github.com/hashicorp/go-set/v3"

	"tephra/internal/atom"
	"tephra/internal/signature"
	"tephra/internal/ttype"
)

// CodebaseMetadata is the symbol table of one analysis run. Lookups accept
// names in any case for classes, functions and methods.
type CodebaseMetadata struct {
	Interner *atom.Interner `msgpack:"-"`

	ClassLikes     map[atom.Atom]*ClassLikeMetadata        `msgpack:"classes"`   // folded
	Functions      map[atom.Atom]*FunctionLikeMetadata     `msgpack:"functions"` // folded
	Constants      map[atom.Atom]*ConstantMetadata         `msgpack:"constants"`
	FileSignatures map[atom.Atom]*signature.FileSignature  `msgpack:"signatures"` // path
	// SymbolFiles maps each top-level key to the path that declares it.
	SymbolFiles map[atom.Atom]atom.Atom `msgpack:"symbol_files"`

	SafeSymbols       atom.Set            `msgpack:"-"`
	SafeSymbolMembers *set.Set[SymbolKey] `msgpack:"-"`

	DirectDescendants map[atom.Atom]atom.Set `msgpack:"-"`
	AllDescendants    map[atom.Atom]atom.Set `msgpack:"-"`
}

func NewCodebase(in *atom.Interner) *CodebaseMetadata {
	return &CodebaseMetadata{
		Interner:          in,
		ClassLikes:        map[atom.Atom]*ClassLikeMetadata{},
		Functions:         map[atom.Atom]*FunctionLikeMetadata{},
		Constants:         map[atom.Atom]*ConstantMetadata{},
		FileSignatures:    map[atom.Atom]*signature.FileSignature{},
		SymbolFiles:       map[atom.Atom]atom.Atom{},
		SafeSymbols:       atom.NewSet(),
		SafeSymbolMembers: set.New[SymbolKey](0),
		DirectDescendants: map[atom.Atom]atom.Set{},
		AllDescendants:    map[atom.Atom]atom.Set{},
	}
}

// EnsureRuntime allocates the fields a decoded codebase lacks.
func (cb *CodebaseMetadata) EnsureRuntime(in *atom.Interner) {
	cb.Interner = in
	if cb.ClassLikes == nil {
		cb.ClassLikes = map[atom.Atom]*ClassLikeMetadata{}
	}
	if cb.Functions == nil {
		cb.Functions = map[atom.Atom]*FunctionLikeMetadata{}
	}
	if cb.Constants == nil {
		cb.Constants = map[atom.Atom]*ConstantMetadata{}
	}
	if cb.FileSignatures == nil {
		cb.FileSignatures = map[atom.Atom]*signature.FileSignature{}
	}
	if cb.SymbolFiles == nil {
		cb.SymbolFiles = map[atom.Atom]atom.Atom{}
	}
	if cb.SafeSymbols.IsZero() {
		cb.SafeSymbols = atom.NewSet()
	}
	if cb.SafeSymbolMembers == nil {
		cb.SafeSymbolMembers = set.New[SymbolKey](0)
	}
	if cb.DirectDescendants == nil {
		cb.DirectDescendants = map[atom.Atom]atom.Set{}
	}
	if cb.AllDescendants == nil {
		cb.AllDescendants = map[atom.Atom]atom.Set{}
	}
}

// HighestAtom returns the largest atom among the symbol keys and names of
// the codebase. A decoded codebase is only usable with an interner longer
// than that.
func (cb *CodebaseMetadata) HighestAtom() atom.Atom {
	top := atom.Empty
	see := func(as ...atom.Atom) {
		for _, a := range as {
			top = max(top, a)
		}
	}
	for k, c := range cb.ClassLikes {
		see(k, c.Name, c.Key, c.DirectParentClass)
		see(c.DirectParentInterfaces...)
		see(c.UsedTraits...)
		for m, fn := range c.Methods {
			see(m, fn.Name, fn.Key, fn.DefiningClass)
		}
		for p := range c.Properties {
			see(p)
		}
	}
	for k, fn := range cb.Functions {
		see(k, fn.Name, fn.Key)
	}
	for k, c := range cb.Constants {
		see(k, c.Name)
	}
	for k := range cb.FileSignatures {
		see(k)
	}
	for k, path := range cb.SymbolFiles {
		see(k, path)
	}
	return top
}

func (cb *CodebaseMetadata) fold(name atom.Atom) atom.Atom {
	return cb.Interner.Lower(name)
}

// AddClassLike registers meta; false when its folded name is taken.
func (cb *CodebaseMetadata) AddClassLike(meta *ClassLikeMetadata) bool {
	if _, dup := cb.ClassLikes[meta.Key]; dup {
		return false
	}
	cb.ClassLikes[meta.Key] = meta
	cb.SymbolFiles[meta.Key] = meta.Location.File
	return true
}

// AddFunction registers fn; false when its folded name is taken.
func (cb *CodebaseMetadata) AddFunction(fn *FunctionLikeMetadata) bool {
	if _, dup := cb.Functions[fn.Key]; dup {
		return false
	}
	cb.Functions[fn.Key] = fn
	cb.SymbolFiles[fn.Key] = fn.Location.File
	return true
}

// AddConstant registers c; false when the name is taken.
func (cb *CodebaseMetadata) AddConstant(c *ConstantMetadata) bool {
	if _, dup := cb.Constants[c.Name]; dup {
		return false
	}
	cb.Constants[c.Name] = c
	cb.SymbolFiles[c.Name] = c.Location.File
	return true
}

func (cb *CodebaseMetadata) ClassLike(name atom.Atom) *ClassLikeMetadata {
	if name == atom.Empty {
		return nil
	}
	return cb.ClassLikes[cb.fold(name)]
}

func (cb *CodebaseMetadata) ClassExists(name atom.Atom) bool {
	return cb.ClassLike(name) != nil
}

// ClassOfKind returns the class-like only when it has the given kind.
func (cb *CodebaseMetadata) ClassOfKind(name atom.Atom, kind ClassKind) *ClassLikeMetadata {
	c := cb.ClassLike(name)
	if c == nil || c.Kind != kind {
		return nil
	}
	return c
}

// SortedClassKeys returns folded class keys ordered by name.
func (cb *CodebaseMetadata) SortedClassKeys() []atom.Atom {
	keys := make([]atom.Atom, 0, len(cb.ClassLikes))
	for k := range cb.ClassLikes {
		keys = append(keys, k)
	}
	in := cb.Interner
	slices.SortFunc(keys, func(a, b atom.Atom) int {
		sa, sb := in.String(a), in.String(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return keys
}

// IsInstanceOf reports child == parent or parent among child's ancestors,
// interfaces included.
func (cb *CodebaseMetadata) IsInstanceOf(child, parent atom.Atom) bool {
	c, p := cb.fold(child), cb.fold(parent)
	if c == p {
		return true
	}
	meta := cb.ClassLikes[c]
	if meta == nil {
		return false
	}
	return meta.AllParentClasses.Has(p) || meta.AllParentInterfaces.Has(p)
}

func (cb *CodebaseMetadata) ClassExtends(child, parent atom.Atom) bool {
	meta := cb.ClassLike(child)
	return meta != nil && meta.AllParentClasses.Has(cb.fold(parent))
}

func (cb *CodebaseMetadata) ClassImplements(child, iface atom.Atom) bool {
	meta := cb.ClassLike(child)
	return meta != nil && meta.AllParentInterfaces.Has(cb.fold(iface))
}

func (cb *CodebaseMetadata) UsesTrait(class, trait atom.Atom) bool {
	meta := cb.ClassLike(class)
	return meta != nil && meta.AllUsedTraits.Has(cb.fold(trait))
}

// DeclaringMethodID returns where the implementation of class::method lives.
func (cb *CodebaseMetadata) DeclaringMethodID(class, method atom.Atom) (MethodIdentifier, bool) {
	meta := cb.ClassLike(class)
	if meta == nil {
		return MethodIdentifier{}, false
	}
	id, ok := meta.DeclaringMethodIDs[cb.fold(method)]
	return id, ok
}

// AppearingMethodID returns the class the method appears to come from.
func (cb *CodebaseMetadata) AppearingMethodID(class, method atom.Atom) (MethodIdentifier, bool) {
	meta := cb.ClassLike(class)
	if meta == nil {
		return MethodIdentifier{}, false
	}
	id, ok := meta.AppearingMethodIDs[cb.fold(method)]
	return id, ok
}

// MethodByID returns the metadata stored at id.
func (cb *CodebaseMetadata) MethodByID(id MethodIdentifier) *FunctionLikeMetadata {
	meta := cb.ClassLikes[id.Class]
	if meta == nil {
		return nil
	}
	return meta.Methods[id.Method]
}

// Method resolves class::method through the declaring id, falling back to
// the class's own table before population.
func (cb *CodebaseMetadata) Method(class, method atom.Atom) *FunctionLikeMetadata {
	if id, ok := cb.DeclaringMethodID(class, method); ok {
		if m := cb.MethodByID(id); m != nil {
			return m
		}
	}
	meta := cb.ClassLike(class)
	if meta == nil {
		return nil
	}
	return meta.Methods[cb.fold(method)]
}

// DeclaringPropertyClass returns the folded class that declares prop.
func (cb *CodebaseMetadata) DeclaringPropertyClass(class, prop atom.Atom) (atom.Atom, bool) {
	meta := cb.ClassLike(class)
	if meta == nil {
		return atom.Empty, false
	}
	if d, ok := meta.DeclaringPropertyIDs[prop]; ok {
		return d, true
	}
	if _, ok := meta.Properties[prop]; ok {
		return meta.Key, true
	}
	return atom.Empty, false
}

func (cb *CodebaseMetadata) Property(class, prop atom.Atom) *PropertyMetadata {
	decl, ok := cb.DeclaringPropertyClass(class, prop)
	if !ok {
		return nil
	}
	meta := cb.ClassLikes[decl]
	if meta == nil {
		return nil
	}
	return meta.Properties[prop]
}

func (cb *CodebaseMetadata) ClassConstant(class, name atom.Atom) *ClassConstantMetadata {
	meta := cb.ClassLike(class)
	if meta == nil {
		return nil
	}
	return meta.Constants[name]
}

func (cb *CodebaseMetadata) EnumCase(class, name atom.Atom) *EnumCaseMetadata {
	meta := cb.ClassLike(class)
	if meta == nil || !meta.IsEnum() {
		return nil
	}
	return meta.EnumCases[name]
}

// ClassConstantType returns the type of class::name: an enum case yields
// the case itself, a constant its declared or inferred type.
func (cb *CodebaseMetadata) ClassConstantType(class, name atom.Atom) (ttype.TUnion, bool) {
	meta := cb.ClassLike(class)
	if meta == nil {
		return ttype.TUnion{}, false
	}
	if meta.IsEnum() && cb.EnumCase(class, name) != nil {
		return ttype.Single(ttype.TEnum{Name: meta.Name, Case: name}), true
	}
	c := cb.ClassConstant(class, name)
	if c == nil {
		return ttype.TUnion{}, false
	}
	t := c.EffectiveType()
	if len(t.Types) == 0 {
		return ttype.Mixed(), true
	}
	return t, true
}

func (cb *CodebaseMetadata) Function(name atom.Atom) *FunctionLikeMetadata {
	return cb.Functions[cb.fold(name)]
}

func (cb *CodebaseMetadata) Constant(name atom.Atom) *ConstantMetadata {
	return cb.Constants[name]
}

// IsEnumOrFinal reports classes that cannot have subclasses.
func (cb *CodebaseMetadata) IsEnumOrFinal(name atom.Atom) bool {
	meta := cb.ClassLike(name)
	return meta != nil && (meta.IsEnum() || meta.IsFinal())
}

// IsSafe reports whether k was marked safe by the incremental engine.
func (cb *CodebaseMetadata) IsSafe(k SymbolKey) bool {
	if k.IsMember() {
		return cb.SafeSymbolMembers.Contains(k)
	}
	return cb.SafeSymbols.Has(k.Symbol)
}

// ComputeDescendants rebuilds DirectDescendants and AllDescendants from the
// populated closures.
func (cb *CodebaseMetadata) ComputeDescendants() {
	cb.DirectDescendants = map[atom.Atom]atom.Set{}
	cb.AllDescendants = map[atom.Atom]atom.Set{}
	add := func(m map[atom.Atom]atom.Set, parent, child atom.Atom) {
		s, ok := m[parent]
		if !ok {
			s = atom.NewSet()
			m[parent] = s
		}
		s.Add(child)
	}
	for key, meta := range cb.ClassLikes {
		if meta.DirectParentClass != atom.Empty {
			add(cb.DirectDescendants, cb.fold(meta.DirectParentClass), key)
		}
		for _, i := range meta.DirectParentInterfaces {
			add(cb.DirectDescendants, cb.fold(i), key)
		}
		for p := range meta.AllParentClasses.All() {
			add(cb.AllDescendants, p, key)
		}
		for p := range meta.AllParentInterfaces.All() {
			add(cb.AllDescendants, p, key)
		}
		for t := range meta.AllUsedTraits.All() {
			add(cb.AllDescendants, t, key)
		}
	}
}

// FileOf returns the path atom that declares the top-level symbol.
func (cb *CodebaseMetadata) FileOf(sym atom.Atom) (atom.Atom, bool) {
	f, ok := cb.SymbolFiles[sym]
	return f, ok
}
