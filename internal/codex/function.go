package codex

import (
	"tephra/internal/atom"
	"tephra/internal/ttype"
)

// TemplateType is one declared template parameter.
type TemplateType struct {
	Name           atom.Atom    `msgpack:"name"`
	DefiningEntity atom.Atom    `msgpack:"def"`
	Constraint     ttype.TUnion `msgpack:"as"`
	Default        ttype.TUnion `msgpack:"default"`
	HasDefault     bool         `msgpack:"has_default"`
	Variance       Variance     `msgpack:"variance"`
}

type ParamMetadata struct {
	Name       atom.Atom    `msgpack:"name"`
	Type       ttype.TUnion `msgpack:"type"`
	HasType    bool         `msgpack:"has_type"`
	HasDefault bool         `msgpack:"has_default"`
	ByRef      bool         `msgpack:"by_ref"`
	Variadic   bool         `msgpack:"variadic"`
	Location   Location     `msgpack:"loc"`
}

type FunctionFlags uint8

const (
	FnStatic FunctionFlags = 1 << iota
	FnAbstract
	FnFinal
	// FnFromTrait marks a trait method copied into a using class.
	FnFromTrait
)

func (f FunctionFlags) Has(x FunctionFlags) bool { return f&x != 0 }

// FunctionLikeMetadata describes a function or a method. For methods,
// DefiningClass is the folded class whose body holds the code.
type FunctionLikeMetadata struct {
	Name          atom.Atom       `msgpack:"name"` // display name
	Key           atom.Atom       `msgpack:"key"`  // folded
	DefiningClass atom.Atom       `msgpack:"class"`
	Params        []ParamMetadata `msgpack:"params"`
	ReturnType    ttype.TUnion    `msgpack:"ret"`
	HasReturnType bool            `msgpack:"has_ret"`
	TemplateTypes []TemplateType  `msgpack:"templates"`
	Visibility    Visibility      `msgpack:"vis"`
	Flags         FunctionFlags   `msgpack:"flags"`
	Location      Location        `msgpack:"loc"`
}

func (f *FunctionLikeMetadata) IsAbstract() bool { return f.Flags.Has(FnAbstract) }
func (f *FunctionLikeMetadata) IsStatic() bool   { return f.Flags.Has(FnStatic) }
func (f *FunctionLikeMetadata) IsFinal() bool    { return f.Flags.Has(FnFinal) }

// RequiredParams counts parameters without defaults before the first variadic.
func (f *FunctionLikeMetadata) RequiredParams() int {
	n := 0
	for _, p := range f.Params {
		if p.HasDefault || p.Variadic {
			break
		}
		n++
	}
	return n
}

// IsVariadic reports a trailing variadic parameter.
func (f *FunctionLikeMetadata) IsVariadic() bool {
	return len(f.Params) > 0 && f.Params[len(f.Params)-1].Variadic
}

// Clone copies the slices a caller may rewrite.
func (f *FunctionLikeMetadata) Clone() *FunctionLikeMetadata {
	out := *f
	out.Params = append([]ParamMetadata(nil), f.Params...)
	out.TemplateTypes = append([]TemplateType(nil), f.TemplateTypes...)
	return &out
}

// Template returns the template named name.
func (f *FunctionLikeMetadata) Template(name atom.Atom) (TemplateType, bool) {
	for _, t := range f.TemplateTypes {
		if t.Name == name {
			return t, true
		}
	}
	return TemplateType{}, false
}

// FunctionEntity names the defining entity of a function's own templates:
// "fn-name" for functions, "fn-class::method" for methods. Both parts are
// folded.
func FunctionEntity(in *atom.Interner, class, fn atom.Atom) atom.Atom {
	if class == atom.Empty {
		return in.Intern("fn-" + in.String(in.Lower(fn)))
	}
	return in.Intern("fn-" + in.String(in.Lower(class)) + "::" + in.String(in.Lower(fn)))
}
