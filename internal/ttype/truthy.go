package ttype

import (
	"strconv"
	"strings"

	"tephra/internal/atom"
)

// AlwaysTruthy reports whether every value of a converts to true.
func AlwaysTruthy(a Atomic, in *atom.Interner) bool {
	switch t := a.(type) {
	case TBool:
		return t.Value == BoolTrue
	case TInt:
		return !t.ContainsInt(0)
	case TFloat:
		return t.Literal && t.Value != 0
	case TString:
		if t.Literal {
			s := in.String(t.Value)
			return s != "" && s != "0"
		}
		return false
	case TNamedObject, TEnum, TObject:
		return true
	case TList:
		return t.NonEmpty || closedWithRequired(t)
	case TKeyedArray:
		if t.NonEmpty {
			return true
		}
		for _, it := range t.Known {
			if !it.Optional {
				return true
			}
		}
		return false
	case TMixed:
		return t.Axis == MixedTruthy
	case TResource:
		return true
	}
	return false
}

func closedWithRequired(l TList) bool {
	for _, e := range l.Known {
		if !e.Optional {
			return true
		}
	}
	return false
}

// AlwaysFalsy reports whether every value of a converts to false.
func AlwaysFalsy(a Atomic, in *atom.Interner) bool {
	switch t := a.(type) {
	case TBool:
		return t.Value == BoolFalse
	case TNull, TVoid:
		return true
	case TInt:
		return t.IsLiteral() && t.Lo == 0
	case TFloat:
		return t.Literal && t.Value == 0
	case TString:
		if t.Literal {
			s := in.String(t.Value)
			return s == "" || s == "0"
		}
		return false
	case TList:
		return t.Closed() && len(t.Known) == 0
	case TKeyedArray:
		return t.IsEmptyArray()
	case TMixed:
		return t.Axis == MixedFalsy
	}
	return false
}

// IsNumericString reports whether s is a numeric string.
func IsNumericString(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if strings.ContainsFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') && r != 'e' && r != 'E'
	}) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
