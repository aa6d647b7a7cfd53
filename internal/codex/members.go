package codex

import (
	"tephra/internal/atom"
	"tephra/internal/ttype"
)

type PropertyMetadata struct {
	Name           atom.Atom    `msgpack:"name"`
	DeclaringClass atom.Atom    `msgpack:"class"`
	Type           ttype.TUnion `msgpack:"type"`
	HasType        bool         `msgpack:"has_type"`
	HasDefault     bool         `msgpack:"has_default"`
	Visibility     Visibility   `msgpack:"vis"`
	Static         bool         `msgpack:"static"`
	Readonly       bool         `msgpack:"readonly"`
	Location       Location     `msgpack:"loc"`
}

type ClassConstantMetadata struct {
	Name           atom.Atom    `msgpack:"name"`
	DeclaringClass atom.Atom    `msgpack:"class"`
	Type           ttype.TUnion `msgpack:"type"`
	// Inferred is the literal type of the value when one could be read.
	Inferred   ttype.TUnion `msgpack:"inferred"`
	Visibility Visibility   `msgpack:"vis"`
	Final      bool         `msgpack:"final"`
	Location   Location     `msgpack:"loc"`
}

// EffectiveType prefers the inferred literal type.
func (c *ClassConstantMetadata) EffectiveType() ttype.TUnion {
	if len(c.Inferred.Types) > 0 {
		return c.Inferred
	}
	return c.Type
}

type EnumCaseMetadata struct {
	Name     atom.Atom    `msgpack:"name"`
	Value    ttype.TUnion `msgpack:"value"` // empty for pure enums
	Location Location     `msgpack:"loc"`
}

// ConstantMetadata is a global constant.
type ConstantMetadata struct {
	Name     atom.Atom    `msgpack:"name"`
	Type     ttype.TUnion `msgpack:"type"`
	Location Location     `msgpack:"loc"`
}
