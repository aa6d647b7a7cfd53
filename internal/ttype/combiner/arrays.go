package combiner

import (
	"slices"

	"tephra/internal/codex"
	"tephra/internal/ttype"
)

func nonNegativeInt() ttype.TUnion { return ttype.Single(ttype.IntFromOf(0)) }

// widenKey is the general type of a folded key.
func widenKey(k ttype.ArrayKey) ttype.Atomic {
	switch k.Kind {
	case ttype.KeyInt:
		return ttype.TInt{}
	case ttype.KeyString:
		return ttype.TString{}
	}
	return k.Atomic()
}

func (c *typeCombination) addList(t ttype.TList) {
	if t.Closed() && len(t.Known) == 0 {
		c.flags |= HasEmptyArray
		return
	}
	s := arrayShape{list: true, nonEmpty: t.NonEmpty}
	s.known = make([]ttype.KnownItem, len(t.Known))
	for i, e := range t.Known {
		s.known[i] = ttype.KnownItem{Key: ttype.IntKey(int64(e.Index)), Type: e.Type, Optional: e.Optional}
	}
	if !t.Closed() {
		s.params = &ttype.KeyedParams{Key: nonNegativeInt(), Value: t.Element}
	}
	c.arrays = append(c.arrays, s)
}

func (c *typeCombination) addKeyed(t ttype.TKeyedArray) {
	if t.IsEmptyArray() {
		c.flags |= HasEmptyArray
		return
	}
	c.arrays = append(c.arrays, arrayShape{known: t.Known, params: t.Params, nonEmpty: t.NonEmpty})
}

func (s arrayShape) item(k ttype.ArrayKey) (ttype.KnownItem, bool) {
	i, ok := slices.BinarySearchFunc(s.known, k, func(it ttype.KnownItem, k ttype.ArrayKey) int { return it.Key.Compare(k) })
	if !ok {
		return ttype.KnownItem{}, false
	}
	return s.known[i], true
}

func (s arrayShape) hasRequired() bool {
	return slices.ContainsFunc(s.known, func(it ttype.KnownItem) bool { return !it.Optional })
}

// finishArrays merges every array input into one list or keyed array.
// A key missing from some input becomes optional and, when that input is
// open, also takes the input's value parameter.
func (c *typeCombination) finishArrays(cb *codex.CodebaseMetadata) []ttype.Atomic {
	if len(c.arrays) == 0 {
		if c.flags.Has(HasEmptyArray) {
			return []ttype.Atomic{ttype.EmptyArray()}
		}
		return nil
	}
	hasEmpty := c.flags.Has(HasEmptyArray)

	list := true
	nonEmpty := !hasEmpty
	var keys []ttype.ArrayKey
	var paramKeys, paramValues []ttype.Atomic
	open := false
	for _, s := range c.arrays {
		list = list && s.list
		nonEmpty = nonEmpty && (s.nonEmpty || s.hasRequired())
		for _, it := range s.known {
			keys = append(keys, it.Key)
		}
		if s.params != nil {
			open = true
			paramKeys = append(paramKeys, s.params.Key.Types...)
			paramValues = append(paramValues, s.params.Value.Types...)
		}
	}
	slices.SortFunc(keys, ttype.ArrayKey.Compare)
	keys = slices.Compact(keys)

	known := make([]ttype.KnownItem, 0, len(keys))
	for _, k := range keys {
		var parts []ttype.Atomic
		optional := hasEmpty
		for _, s := range c.arrays {
			if it, ok := s.item(k); ok {
				parts = append(parts, it.Type.Types...)
				optional = optional || it.Optional
				continue
			}
			optional = true
			if s.params != nil {
				parts = append(parts, s.params.Value.Types...)
			}
		}
		known = append(known, ttype.KnownItem{
			Key:      k,
			Type:     ttype.TUnion{Types: Combine(parts, cb, false)},
			Optional: optional,
		})
	}

	if len(known) > ArrayKnownLimit {
		for _, it := range known {
			paramKeys = append(paramKeys, widenKey(it.Key))
			paramValues = append(paramValues, it.Type.Types...)
		}
		known = nil
		open = true
	}

	var params *ttype.KeyedParams
	if open {
		params = &ttype.KeyedParams{
			Key:   ttype.TUnion{Types: Combine(paramKeys, cb, false)},
			Value: ttype.TUnion{Types: Combine(paramValues, cb, false)},
		}
	}
	required := slices.ContainsFunc(known, func(it ttype.KnownItem) bool { return !it.Optional })
	// NonEmpty is implied by a required entry
	flagNonEmpty := nonEmpty && !required

	if list {
		out := ttype.TList{Element: ttype.Never(), NonEmpty: flagNonEmpty}
		if params != nil {
			out.Element = params.Value
		}
		out.Known = make([]ttype.ListElement, len(known))
		for i, it := range known {
			out.Known[i] = ttype.ListElement{Index: int(it.Key.Int), Type: it.Type, Optional: it.Optional}
		}
		return []ttype.Atomic{out}
	}
	return []ttype.Atomic{ttype.TKeyedArray{Known: known, Params: params, NonEmpty: flagNonEmpty}}
}
