package comparator

import (
	"slices"

	"tephra/internal/ttype"
)

// shape is an array in keyed form. Lists become int-keyed shapes whose open
// part has non-negative-int keys.
type shape struct {
	known    []ttype.KnownItem
	params   *ttype.KeyedParams
	nonEmpty bool
}

func shapeOf(a ttype.Atomic) (shape, bool) {
	switch t := a.(type) {
	case ttype.TList:
		s := shape{nonEmpty: t.NonEmpty}
		for _, e := range t.Known {
			s.known = append(s.known, ttype.KnownItem{Key: ttype.IntKey(int64(e.Index)), Type: e.Type, Optional: e.Optional})
		}
		if !t.Closed() {
			s.params = &ttype.KeyedParams{Key: ttype.Single(ttype.IntFromOf(0)), Value: t.Element}
		}
		return s, true
	case ttype.TKeyedArray:
		return shape{known: t.Known, params: t.Params, nonEmpty: t.NonEmpty}, true
	}
	return shape{}, false
}

// requiresValue reports a shape that always holds at least one entry.
func (s shape) requiresValue() bool {
	return s.nonEmpty || slices.ContainsFunc(s.known, func(it ttype.KnownItem) bool { return !it.Optional })
}

func (s shape) isEmpty() bool { return len(s.known) == 0 && s.params == nil }

func (s shape) item(k ttype.ArrayKey) (ttype.KnownItem, bool) {
	i, ok := slices.BinarySearchFunc(s.known, k, func(it ttype.KnownItem, k ttype.ArrayKey) int { return it.Key.Compare(k) })
	if !ok {
		return ttype.KnownItem{}, false
	}
	return s.known[i], true
}

func (c *comparer) array(input, container ttype.Atomic, r *ComparisonResult) bool {
	in, ok := shapeOf(input)
	if !ok {
		return false
	}
	co, _ := shapeOf(container)

	if in.isEmpty() {
		return !co.requiresValue()
	}
	if co.requiresValue() && !in.requiresValue() {
		return false
	}
	// a keyed array never satisfies a list
	if _, toList := container.(ttype.TList); toList {
		if _, fromKeyed := input.(ttype.TKeyedArray); fromKeyed {
			return false
		}
	}

	sub := *c
	sub.nested = true
	ok = true
	for _, it := range in.known {
		if ct, found := co.item(it.Key); found {
			if !sub.union(it.Type, ct.Type, false, false, r) {
				ok = false
			}
			if it.Optional && !ct.Optional {
				ok = false
			}
			continue
		}
		if co.params == nil {
			return false
		}
		if !sub.anyContains(it.Key.Atomic(), co.params.Key, r) || !sub.union(it.Type, co.params.Value, false, false, r) {
			ok = false
		}
	}
	for _, ct := range co.known {
		if _, found := in.item(ct.Key); found {
			continue
		}
		if !ct.Optional {
			return false
		}
		// an open input may still produce the key
		if in.params == nil || !sub.anyContains(ct.Key.Atomic(), in.params.Key, &ComparisonResult{}) {
			continue
		}
		if !sub.union(in.params.Value, ct.Type, false, false, r) {
			ok = false
		}
	}
	if in.params != nil {
		if co.params == nil {
			return false
		}
		if !sub.union(in.params.Key, co.params.Key, false, false, r) || !sub.union(in.params.Value, co.params.Value, false, false, r) {
			ok = false
		}
	}
	return ok
}
