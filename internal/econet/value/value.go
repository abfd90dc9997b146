// Package value carries decoded register values end-to-end as a small
// closed union and implements the typed wire encode/decode with
// fixed-point exponent scaling.
package value

import (
	"math"
	"strconv"
)

// Kind discriminates the Value union. The zero Kind is Absent so an
// uninitialized Value reads as "no value".
type Kind int

const (
	KindAbsent Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindText
)

// Value is one decoded register value. Exactly the field selected by
// Kind is meaningful.
type Value struct {
	Kind Kind
	Int  int64
	Flt  float64
	Bool bool
	Text string
}

func Absent() Value            { return Value{} }
func Int(v int64) Value        { return Value{Kind: KindInteger, Int: v} }
func Float(v float64) Value    { return Value{Kind: KindFloat, Flt: v} }
func Boolean(v bool) Value     { return Value{Kind: KindBoolean, Bool: v} }
func Text(s string) Value      { return Value{Kind: KindText, Text: s} }
func (v Value) IsAbsent() bool { return v.Kind == KindAbsent }

// AsFloat returns the numeric interpretation of v. Booleans and text
// are not numeric here; text that happens to hold digits is still text.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Flt, true
	default:
		return 0, false
	}
}

// Equal compares loosely: numeric variants compare as float64
// (20 == 20.0), everything else compares exactly.
func (v Value) Equal(o Value) bool {
	if a, ok := v.AsFloat(); ok {
		if b, ok := o.AsFloat(); ok {
			return a == b
		}
		return false
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBoolean:
		return v.Bool == o.Bool
	case KindText:
		return v.Text == o.Text
	default:
		return true // both absent
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindText:
		return v.Text
	default:
		return "<absent>"
	}
}

// Parse converts an external textual value (HTTP body, CLI argument)
// into the union, preferring the narrowest representation.
func Parse(s string) Value {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return Boolean(b)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return Text(s)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// MarshalJSON renders the underlying variant directly so snapshots
// serialize as plain JSON scalars.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInteger:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		return []byte(strconv.FormatFloat(v.Flt, 'g', -1, 64)), nil
	case KindBoolean:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case KindText:
		return []byte(strconv.Quote(v.Text)), nil
	default:
		return []byte("null"), nil
	}
}
