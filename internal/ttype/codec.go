package ttype

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	flagIgnoreFalsable uint8 = 1 << iota
	flagIgnoreNullable
	flagFromTemplateDefault
	flagPossiblyUndefined
	flagByReference
)

var (
	_ msgpack.CustomEncoder = TUnion{}
	_ msgpack.CustomDecoder = (*TUnion)(nil)
)

// EncodeMsgpack writes [flags, n, kind0, atomic0, kind1, atomic1, ...].
// Atomics are interfaces, so each payload is preceded by its kind tag.
func (u TUnion) EncodeMsgpack(enc *msgpack.Encoder) error {
	var flags uint8
	if u.IgnoreFalsableIssues {
		flags |= flagIgnoreFalsable
	}
	if u.IgnoreNullableIssues {
		flags |= flagIgnoreNullable
	}
	if u.FromTemplateDefault {
		flags |= flagFromTemplateDefault
	}
	if u.PossiblyUndefined {
		flags |= flagPossiblyUndefined
	}
	if u.ByReference {
		flags |= flagByReference
	}
	if err := enc.EncodeUint8(flags); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(u.Types)); err != nil {
		return err
	}
	for _, t := range u.Types {
		if err := enc.EncodeUint8(uint8(t.Kind())); err != nil {
			return err
		}
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode %T: %w", t, err)
		}
	}
	return nil
}

func (u *TUnion) DecodeMsgpack(dec *msgpack.Decoder) error {
	flags, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	*u = TUnion{
		IgnoreFalsableIssues: flags&flagIgnoreFalsable != 0,
		IgnoreNullableIssues: flags&flagIgnoreNullable != 0,
		FromTemplateDefault:  flags&flagFromTemplateDefault != 0,
		PossiblyUndefined:    flags&flagPossiblyUndefined != 0,
		ByReference:          flags&flagByReference != 0,
	}
	if n <= 0 {
		return nil
	}
	u.Types = make([]Atomic, 0, n)
	for range n {
		kind, err := dec.DecodeUint8()
		if err != nil {
			return err
		}
		a, err := decodeAtomic(dec, Kind(kind))
		if err != nil {
			return err
		}
		u.Types = append(u.Types, a)
	}
	return nil
}

func decodeInto[T Atomic](dec *msgpack.Decoder) (Atomic, error) {
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

func decodeAtomic(dec *msgpack.Decoder, k Kind) (Atomic, error) {
	switch k {
	case KindBool:
		return decodeInto[TBool](dec)
	case KindInt:
		return decodeInto[TInt](dec)
	case KindFloat:
		return decodeInto[TFloat](dec)
	case KindString:
		return decodeInto[TString](dec)
	case KindArrayKey:
		return decodeInto[TArrayKey](dec)
	case KindNumeric:
		return decodeInto[TNumeric](dec)
	case KindScalar:
		return decodeInto[TScalar](dec)
	case KindList:
		return decodeInto[TList](dec)
	case KindKeyedArray:
		return decodeInto[TKeyedArray](dec)
	case KindNamedObject:
		return decodeInto[TNamedObject](dec)
	case KindEnum:
		return decodeInto[TEnum](dec)
	case KindObject:
		return decodeInto[TObject](dec)
	case KindNull:
		return decodeInto[TNull](dec)
	case KindVoid:
		return decodeInto[TVoid](dec)
	case KindNever:
		return decodeInto[TNever](dec)
	case KindMixed:
		return decodeInto[TMixed](dec)
	case KindGenericParameter:
		return decodeInto[TGenericParameter](dec)
	case KindDerived:
		return decodeInto[TDerived](dec)
	case KindResource:
		return decodeInto[TResource](dec)
	case KindAlias:
		return decodeInto[TAlias](dec)
	case KindMemberReference:
		return decodeInto[TMemberReference](dec)
	}
	return nil, fmt.Errorf("unknown atomic kind %d", k)
}
