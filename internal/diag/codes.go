package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Стабы и докблоки
	StubInfo            Code = 1000
	InvalidStub         Code = 1001
	InvalidDocblockType Code = 1002
	DuplicateSymbol     Code = 1003

	// Иерархия классов
	HierInfo                    Code = 2000
	MissingDependency           Code = 2001
	CircularInheritance         Code = 2002
	UnimplementedAbstractMethod Code = 2003
	MethodSignatureMismatch     Code = 2004
	InvalidTraitUse             Code = 2005
	InvalidExtendClass          Code = 2006

	// Анализ тел
	AnaInfo                        Code = 3000
	UndefinedClass                 Code = 3001
	UndefinedFunction              Code = 3002
	UndefinedMethod                Code = 3003
	UndefinedProperty              Code = 3004
	UndefinedConstant              Code = 3005
	UndefinedVariable              Code = 3006
	PossiblyUndefinedVariable      Code = 3007
	InvalidArgument                Code = 3008
	PossiblyInvalidArgument        Code = 3009
	MixedArgument                  Code = 3010
	TooFewArguments                Code = 3011
	TooManyArguments               Code = 3012
	InvalidReturnStatement         Code = 3013
	PossiblyInvalidReturnStatement Code = 3014
	NullableReturnStatement        Code = 3015
	MissingReturnStatement         Code = 3016
	InvalidPropertyAssignment      Code = 3017
	PossiblyNullReference          Code = 3018
	MixedMethodCall                Code = 3019
	AbstractInstantiation          Code = 3020
	InterfaceInstantiation         Code = 3021
	InvalidIterator                Code = 3022
	NullReference                  Code = 3023
	InvalidArrayOffset             Code = 3024

	// Ошибки I/O и состояния
	IOLoadFileError   Code = 4001
	IOStateReadError  Code = 4002
	IOStateWriteError Code = 4003

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeName = map[Code]string{
	UnknownCode:                    "Unknown",
	InvalidStub:                    "InvalidStub",
	InvalidDocblockType:            "InvalidDocblockType",
	DuplicateSymbol:                "DuplicateSymbol",
	MissingDependency:              "MissingDependency",
	CircularInheritance:            "CircularInheritance",
	UnimplementedAbstractMethod:    "UnimplementedAbstractMethod",
	MethodSignatureMismatch:        "MethodSignatureMismatch",
	InvalidTraitUse:                "InvalidTraitUse",
	InvalidExtendClass:             "InvalidExtendClass",
	UndefinedClass:                 "UndefinedClass",
	UndefinedFunction:              "UndefinedFunction",
	UndefinedMethod:                "UndefinedMethod",
	UndefinedProperty:              "UndefinedProperty",
	UndefinedConstant:              "UndefinedConstant",
	UndefinedVariable:              "UndefinedVariable",
	PossiblyUndefinedVariable:      "PossiblyUndefinedVariable",
	InvalidArgument:                "InvalidArgument",
	PossiblyInvalidArgument:        "PossiblyInvalidArgument",
	MixedArgument:                  "MixedArgument",
	TooFewArguments:                "TooFewArguments",
	TooManyArguments:               "TooManyArguments",
	InvalidReturnStatement:         "InvalidReturnStatement",
	PossiblyInvalidReturnStatement: "PossiblyInvalidReturnStatement",
	NullableReturnStatement:        "NullableReturnStatement",
	MissingReturnStatement:         "MissingReturnStatement",
	InvalidPropertyAssignment:      "InvalidPropertyAssignment",
	PossiblyNullReference:          "PossiblyNullReference",
	MixedMethodCall:                "MixedMethodCall",
	AbstractInstantiation:          "AbstractInstantiation",
	InterfaceInstantiation:         "InterfaceInstantiation",
	InvalidIterator:                "InvalidIterator",
	NullReference:                  "NullReference",
	InvalidArrayOffset:             "InvalidArrayOffset",
	IOLoadFileError:                "LoadFileError",
	IOStateReadError:               "StateReadError",
	IOStateWriteError:              "StateWriteError",
	ObsTimings:                     "Timings",
}

// defaultSeverity overrides SevError for codes that are not errors.
var defaultSeverity = map[Code]Severity{
	PossiblyUndefinedVariable:      SevWarning,
	PossiblyInvalidArgument:        SevWarning,
	MixedArgument:                  SevInfo,
	PossiblyInvalidReturnStatement: SevWarning,
	NullableReturnStatement:        SevWarning,
	PossiblyNullReference:          SevWarning,
	MixedMethodCall:                SevInfo,
	IOStateReadError:               SevWarning,
	ObsTimings:                     SevInfo,
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("STB%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("HIR%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("ANA%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

// Name is the issue name, e.g. "InvalidReturnStatement".
func (c Code) Name() string {
	if n, ok := codeName[c]; ok {
		return n
	}
	return codeName[UnknownCode]
}

func (c Code) DefaultSeverity() Severity {
	if s, ok := defaultSeverity[c]; ok {
		return s
	}
	return SevError
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Name())
}
