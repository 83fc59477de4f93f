package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates the variants of a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindBool
	KindTime
)

// Value is a loosely typed feature scalar as it arrives from the donor
// datastore or an API request: a number, string, boolean, timestamp, or
// null. Each variant has exactly one numeric encoding rule, applied by the
// features package.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	Time time.Time
}

// Number builds a numeric Value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// String builds a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Boolean builds a boolean Value.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Timestamp builds a time Value.
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Null builds the null Value.
func Null() Value { return Value{Kind: KindNull} }

// IsZero reports whether v is the null variant.
func (v Value) IsZero() bool { return v.Kind == KindNull }

// MarshalJSON renders the variant as its natural JSON form. Timestamps use
// RFC 3339 so they round-trip through UnmarshalJSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindTime:
		return json.Marshal(v.Time.Format(time.RFC3339))
	case KindNull:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalJSON maps JSON scalars onto variants. Strings that parse as
// RFC 3339 timestamps become the time variant; everything else stays a
// string. Non-scalar JSON (objects, arrays) is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(x)
	case bool:
		*v = Boolean(x)
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			*v = Timestamp(t)
		} else {
			*v = String(x)
		}
	default:
		return fmt.Errorf("feature value must be a scalar, got %T", raw)
	}
	return nil
}
