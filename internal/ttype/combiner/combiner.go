package combiner

import (
	"cmp"
	"math"
	"slices"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/ttype"
)

// Combine merges a multiset of atomics into the smallest equivalent union.
// The result order depends only on the input multiset: atomics are grouped
// by kind and ordered structurally inside each group. An empty input yields
// never. cb supplies the interner and the enum cases; it must not be nil.
//
// With allowMixedUnion, a mixed that is narrower than plain mixed (truthy,
// falsy, nonnull) keeps the atomics its axis does not cover; otherwise every
// input collapses into a single mixed.
func Combine(types []ttype.Atomic, cb *codex.CodebaseMetadata, allowMixedUnion bool) []ttype.Atomic {
	switch len(types) {
	case 0:
		return []ttype.Atomic{ttype.TNever{}}
	case 1:
		if !ttype.IsArray(types[0]) {
			return []ttype.Atomic{types[0]}
		}
	}

	c := newCombination()
	for _, t := range types {
		c.add(cb, t)
	}
	return c.finish(cb, allowMixedUnion)
}

// CombineUnions combines the atomics of a and b and ORs their flags.
func CombineUnions(a, b ttype.TUnion, cb *codex.CodebaseMetadata, allowMixedUnion bool) ttype.TUnion {
	types := make([]ttype.Atomic, 0, len(a.Types)+len(b.Types))
	types = append(types, a.Types...)
	types = append(types, b.Types...)
	return ttype.TUnion{
		Types:                Combine(types, cb, allowMixedUnion),
		IgnoreFalsableIssues: a.IgnoreFalsableIssues || b.IgnoreFalsableIssues,
		IgnoreNullableIssues: a.IgnoreNullableIssues || b.IgnoreNullableIssues,
		FromTemplateDefault:  a.FromTemplateDefault || b.FromTemplateDefault,
		PossiblyUndefined:    a.PossiblyUndefined || b.PossiblyUndefined,
		ByReference:          a.ByReference || b.ByReference,
	}
}

// CombineUnion recombines the atomics of u, keeping its flags.
func CombineUnion(u ttype.TUnion, cb *codex.CodebaseMetadata) ttype.TUnion {
	out := u
	out.Types = Combine(u.Types, cb, false)
	return out
}

// CombineAll folds CombineUnions over us; no unions means never.
func CombineAll(us []ttype.TUnion, cb *codex.CodebaseMetadata) ttype.TUnion {
	if len(us) == 0 {
		return ttype.Never()
	}
	out := us[0]
	for _, u := range us[1:] {
		out = CombineUnions(out, u, cb, false)
	}
	if len(us) == 1 {
		out = CombineUnion(out, cb)
	}
	return out
}

func (c *typeCombination) add(cb *codex.CodebaseMetadata, a ttype.Atomic) {
	switch t := a.(type) {
	case ttype.TNever:
	case ttype.TVoid:
		c.flags |= HasVoid
	case ttype.TNull:
		c.flags |= HasNull
	case ttype.TMixed:
		c.flags |= HasMixed
		c.truthyMixed = c.truthyMixed.And(t.Axis == ttype.MixedTruthy)
		c.falsyMixed = c.falsyMixed.And(t.Axis == ttype.MixedFalsy)
		c.nonnullMixed = c.nonnullMixed.And(t.Axis == ttype.MixedNonNull || t.Axis == ttype.MixedTruthy)
		c.mixedFromLoopIsset = c.mixedFromLoopIsset.And(t.FromLoopIsset)
	case ttype.TBool:
		switch t.Value {
		case ttype.BoolTrue:
			c.flags |= HasTrue
		case ttype.BoolFalse:
			c.flags |= HasFalse
		default:
			c.flags |= HasGeneralBool
		}
	case ttype.TInt:
		if t.Shape == ttype.IntUnspecified {
			c.flags |= HasGeneralInt
		} else {
			c.ints = append(c.ints, t)
		}
	case ttype.TFloat:
		if t.Literal {
			c.floats[t.Value] = struct{}{}
		} else {
			c.flags |= HasGeneralFloat
		}
	case ttype.TString:
		c.addString(cb.Interner, t)
	case ttype.TArrayKey:
		c.flags |= HasArrayKey
	case ttype.TNumeric:
		c.flags |= HasNumeric
	case ttype.TScalar:
		c.flags |= HasScalar
	case ttype.TList:
		c.addList(t)
	case ttype.TKeyedArray:
		c.addKeyed(t)
	case ttype.TObject:
		c.flags |= HasObjectTopType
	case ttype.TNamedObject:
		c.addObject(cb, t)
	case ttype.TEnum:
		c.addEnum(cb.Interner, t)
	case ttype.TGenericParameter:
		k := genericKey{name: t.Name, def: t.DefiningEntity}
		if e, ok := c.generics[k]; ok {
			e.constraint = CombineUnions(e.constraint, t.Constraint, cb, false)
		} else {
			c.generics[k] = &genericEntry{name: t.Name, def: t.DefiningEntity, constraint: t.Constraint}
		}
	case ttype.TDerived:
		c.derived[ttype.Key(t)] = t
	case ttype.TResource:
		switch t.State {
		case ttype.ResourceOpen:
			c.resourceOpen = true
		case ttype.ResourceClosed:
			c.resourceClosed = true
		default:
			c.resourceAny = true
		}
	default:
		c.values[ttype.Key(a)] = a
	}
}

func (c *typeCombination) addString(in *atom.Interner, t ttype.TString) {
	if t.Literal {
		c.strings[t.Value] = struct{}{}
		s := in.String(t.Value)
		c.strNonEmpty = c.strNonEmpty.And(s != "")
		c.strNumeric = c.strNumeric.And(ttype.IsNumericString(s))
		return
	}
	c.flags |= HasGeneralString
	c.strNonEmpty = c.strNonEmpty.And(t.NonEmpty || t.Numeric)
	c.strNumeric = c.strNumeric.And(t.Numeric)
}

func (c *typeCombination) addObject(cb *codex.CodebaseMetadata, t ttype.TNamedObject) {
	key := cb.Interner.Lower(t.Name)
	e, ok := c.objects[key]
	if !ok {
		c.objects[key] = &objectEntry{
			name:   t.Name,
			params: slices.Clone(t.TypeParams),
			isThis: t.IsThis,
		}
		return
	}
	e.isThis = e.isThis && t.IsThis
	if e.dropped {
		return
	}
	if len(e.params) != len(t.TypeParams) {
		e.dropped = true
		e.params = nil
		return
	}
	for i, p := range t.TypeParams {
		e.params[i] = CombineUnions(e.params[i], p, cb, false)
	}
}

func (c *typeCombination) addEnum(in *atom.Interner, t ttype.TEnum) {
	key := in.Lower(t.Name)
	e, ok := c.enums[key]
	if !ok {
		e = &enumEntry{name: t.Name, cases: atom.NewSet()}
		c.enums[key] = e
	}
	if t.Case == atom.Empty {
		e.all = true
	} else {
		e.cases.Add(t.Case)
	}
}

func (c *typeCombination) finish(cb *codex.CodebaseMetadata, allowMixedUnion bool) []ttype.Atomic {
	in := cb.Interner
	var out []ttype.Atomic

	scalar := c.flags.Has(HasScalar)
	arrayKey := scalar || c.flags.Has(HasArrayKey)
	numeric := scalar || c.flags.Has(HasNumeric)

	if scalar {
		out = append(out, ttype.TScalar{})
	} else {
		out = append(out, c.finishBools()...)
		if arrayKey {
			out = append(out, ttype.TArrayKey{})
		} else if !numeric {
			out = append(out, c.finishInts()...)
		}
		if numeric {
			out = append(out, ttype.TNumeric{})
		} else {
			out = append(out, c.finishFloats()...)
		}
		if !arrayKey {
			out = append(out, c.finishStrings(in, numeric)...)
		}
	}

	out = append(out, c.finishArrays(cb)...)
	out = append(out, c.finishObjects(cb)...)

	for _, e := range sortedGenerics(in, c.generics) {
		out = append(out, ttype.TGenericParameter{Name: e.name, DefiningEntity: e.def, Constraint: e.constraint})
	}
	out = append(out, sortedValues(c.derived)...)

	switch {
	case c.resourceAny || (c.resourceOpen && c.resourceClosed):
		out = append(out, ttype.TResource{})
	case c.resourceOpen:
		out = append(out, ttype.TResource{State: ttype.ResourceOpen})
	case c.resourceClosed:
		out = append(out, ttype.TResource{State: ttype.ResourceClosed})
	}

	out = append(out, sortedValues(c.values)...)

	// void next to anything else is null
	switch {
	case c.flags.Has(HasNull):
		out = append(out, ttype.TNull{})
	case c.flags.Has(HasVoid) && (len(out) > 0 || c.flags.Has(HasMixed)):
		out = append(out, ttype.TNull{})
	case c.flags.Has(HasVoid):
		out = append(out, ttype.TVoid{})
	}

	slices.SortStableFunc(out, func(a, b ttype.Atomic) int { return cmp.Compare(a.Kind(), b.Kind()) })

	if c.flags.Has(HasMixed) {
		return c.finishMixed(in, out, allowMixedUnion)
	}
	if len(out) == 0 {
		return []ttype.Atomic{ttype.TNever{}}
	}
	return out
}

// finishMixed picks the most specific mixed axis valid for every input.
func (c *typeCombination) finishMixed(in *atom.Interner, rest []ttype.Atomic, allowMixedUnion bool) []ttype.Atomic {
	axis := ttype.MixedAny
	switch {
	case c.truthyMixed.IsTrue():
		axis = ttype.MixedTruthy
	case c.falsyMixed.IsTrue():
		axis = ttype.MixedFalsy
	case c.nonnullMixed.IsTrue():
		axis = ttype.MixedNonNull
	}
	loopIsset := c.mixedFromLoopIsset.IsTrue()

	if allowMixedUnion && axis != ttype.MixedAny {
		out := []ttype.Atomic{ttype.TMixed{Axis: axis, FromLoopIsset: loopIsset}}
		for _, t := range rest {
			if !covers(in, axis, t) {
				out = append(out, t)
			}
		}
		return out
	}

	for axis != ttype.MixedAny && slices.ContainsFunc(rest, func(t ttype.Atomic) bool { return !covers(in, axis, t) }) {
		axis = widenAxis(axis)
	}
	return []ttype.Atomic{ttype.TMixed{Axis: axis, FromLoopIsset: loopIsset}}
}

func covers(in *atom.Interner, axis ttype.MixedAxis, t ttype.Atomic) bool {
	switch axis {
	case ttype.MixedTruthy:
		return ttype.AlwaysTruthy(t, in)
	case ttype.MixedFalsy:
		return ttype.AlwaysFalsy(t, in)
	case ttype.MixedNonNull:
		return !ttype.IsNullish(t)
	}
	return true
}

func widenAxis(axis ttype.MixedAxis) ttype.MixedAxis {
	if axis == ttype.MixedTruthy {
		return ttype.MixedNonNull
	}
	return ttype.MixedAny
}

func (c *typeCombination) finishBools() []ttype.Atomic {
	switch {
	case c.flags.Has(HasGeneralBool) || (c.flags.Has(HasTrue) && c.flags.Has(HasFalse)):
		return []ttype.Atomic{ttype.TBool{}}
	case c.flags.Has(HasTrue):
		return []ttype.Atomic{ttype.TBool{Value: ttype.BoolTrue}}
	case c.flags.Has(HasFalse):
		return []ttype.Atomic{ttype.TBool{Value: ttype.BoolFalse}}
	}
	return nil
}

func (c *typeCombination) finishFloats() []ttype.Atomic {
	if c.flags.Has(HasGeneralFloat) {
		return []ttype.Atomic{ttype.TFloat{}}
	}
	if len(c.floats) == 0 {
		return nil
	}
	vals := make([]float64, 0, len(c.floats))
	for v := range c.floats {
		vals = append(vals, v)
	}
	slices.Sort(vals)
	out := make([]ttype.Atomic, len(vals))
	for i, v := range vals {
		out[i] = ttype.FloatLit(v)
	}
	return out
}

// finishStrings widens to a general string when one was seen or the literal
// set is too large. Under numeric, numeric literals are absorbed.
func (c *typeCombination) finishStrings(in *atom.Interner, numeric bool) []ttype.Atomic {
	if !c.flags.Has(HasGeneralString) && len(c.strings) == 0 {
		return nil
	}
	if c.flags.Has(HasGeneralString) || len(c.strings) > StringLiteralLimit {
		isNumeric := c.strNumeric.IsTrue()
		if numeric && isNumeric {
			return nil
		}
		return []ttype.Atomic{ttype.TString{NonEmpty: c.strNonEmpty.IsTrue() && !isNumeric, Numeric: isNumeric}}
	}

	lits := make([]atom.Atom, 0, len(c.strings))
	for s := range c.strings {
		if numeric && ttype.IsNumericString(in.String(s)) {
			continue
		}
		lits = append(lits, s)
	}
	slices.SortFunc(lits, func(a, b atom.Atom) int { return cmp.Compare(in.String(a), in.String(b)) })
	out := make([]ttype.Atomic, len(lits))
	for i, s := range lits {
		out[i] = ttype.StringLit(s)
	}
	return out
}

type interval struct {
	lo, hi int64
	lit bool
}

// touches reports whether b (with b.lo >= a.lo) overlaps or is adjacent to a.
func touches(a, b interval) bool {
	return a.hi == math.MaxInt64 || a.hi+1 >= b.lo
}

// finishInts merges ranges with whatever they overlap or touch. Literals
// only merge into ranges, never with each other, until there are too many.
func (c *typeCombination) finishInts() []ttype.Atomic {
	if c.flags.Has(HasGeneralInt) {
		return []ttype.Atomic{ttype.TInt{}}
	}
	if len(c.ints) == 0 {
		return nil
	}

	ivs := make([]interval, len(c.ints))
	for i, t := range c.ints {
		lo, hi := t.Bounds()
		ivs[i] = interval{lo: lo, hi: hi, lit: t.IsLiteral()}
	}
	slices.SortFunc(ivs, func(a, b interval) int {
		if d := cmp.Compare(a.lo, b.lo); d != 0 {
			return d
		}
		return cmp.Compare(a.hi, b.hi)
	})

	merged := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		n := len(merged)
		if n == 0 {
			merged = append(merged, iv)
			continue
		}
		last := &merged[n-1]
		if last.lit && iv.lit {
			if last.lo != iv.lo {
				merged = append(merged, iv)
			}
			continue
		}
		if !touches(*last, iv) {
			merged = append(merged, iv)
			continue
		}
		last.hi = max(last.hi, iv.hi)
		last.lit = false
		// the widened range may now reach the literal before it
		for len(merged) > 1 && touches(merged[len(merged)-2], merged[len(merged)-1]) {
			prev, cur := merged[len(merged)-2], merged[len(merged)-1]
			merged = merged[:len(merged)-1]
			merged[len(merged)-1] = interval{lo: prev.lo, hi: max(prev.hi, cur.hi)}
		}
	}

	lits := 0
	for _, iv := range merged {
		if iv.lit {
			lits++
		}
	}
	if lits > IntegerLiteralLimit {
		for i := 1; i < len(merged); i++ {
			if merged[i-1].hi+1 != merged[i].lo {
				return []ttype.Atomic{ttype.TInt{}}
			}
		}
		return []ttype.Atomic{ttype.IntFromBounds(merged[0].lo, merged[len(merged)-1].hi)}
	}

	out := make([]ttype.Atomic, len(merged))
	for i, iv := range merged {
		if iv.lit {
			out[i] = ttype.IntLit(iv.lo)
		} else {
			out[i] = ttype.IntFromBounds(iv.lo, iv.hi)
		}
	}
	return out
}

func (c *typeCombination) finishObjects(cb *codex.CodebaseMetadata) []ttype.Atomic {
	if c.flags.Has(HasObjectTopType) {
		return []ttype.Atomic{ttype.TObject{}}
	}
	in := cb.Interner
	var out []ttype.Atomic

	objs := make([]*objectEntry, 0, len(c.objects))
	for _, e := range c.objects {
		objs = append(objs, e)
	}
	slices.SortFunc(objs, func(a, b *objectEntry) int { return cmp.Compare(in.String(a.name), in.String(b.name)) })
	for _, e := range objs {
		out = append(out, ttype.TNamedObject{Name: e.name, TypeParams: e.params, IsThis: e.isThis})
	}

	enums := make([]*enumEntry, 0, len(c.enums))
	for _, e := range c.enums {
		enums = append(enums, e)
	}
	slices.SortFunc(enums, func(a, b *enumEntry) int { return cmp.Compare(in.String(a.name), in.String(b.name)) })
	for _, e := range enums {
		out = append(out, finishEnum(cb, e)...)
	}
	return out
}

// finishEnum collapses the cases of an enum into the enum once every case
// is present.
func finishEnum(cb *codex.CodebaseMetadata, e *enumEntry) []ttype.Atomic {
	if e.all {
		return []ttype.Atomic{ttype.TEnum{Name: e.name}}
	}
	meta := cb.ClassLike(e.name)
	var order []atom.Atom
	if meta != nil && meta.IsEnum() {
		order = meta.CaseOrder
		if len(meta.EnumCases) > 0 {
			complete := true
			for name := range meta.EnumCases {
				if !e.cases.Has(name) {
					complete = false
					break
				}
			}
			if complete {
				return []ttype.Atomic{ttype.TEnum{Name: e.name}}
			}
		}
	}

	cases := make([]atom.Atom, 0, e.cases.Len())
	for _, name := range order {
		if e.cases.Has(name) {
			cases = append(cases, name)
		}
	}
	if len(cases) < e.cases.Len() {
		known := atom.NewSet(cases...)
		var rest []atom.Atom
		for name := range e.cases.All() {
			if !known.Has(name) {
				rest = append(rest, name)
			}
		}
		in := cb.Interner
		slices.SortFunc(rest, func(a, b atom.Atom) int { return cmp.Compare(in.String(a), in.String(b)) })
		cases = append(cases, rest...)
	}

	out := make([]ttype.Atomic, len(cases))
	for i, name := range cases {
		out[i] = ttype.TEnum{Name: e.name, Case: name}
	}
	return out
}

func sortedGenerics(in *atom.Interner, m map[genericKey]*genericEntry) []*genericEntry {
	out := make([]*genericEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *genericEntry) int {
		if d := cmp.Compare(in.String(a.name), in.String(b.name)); d != 0 {
			return d
		}
		return cmp.Compare(in.String(a.def), in.String(b.def))
	})
	return out
}

func sortedValues(m map[string]ttype.Atomic) []ttype.Atomic {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]ttype.Atomic, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
