package value

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

// Type is the wire data type of a register. It determines the byte
// width and signedness of the encoded value.
type Type string

const (
	TypeByte     Type = "byte"
	TypeBool     Type = "bool"
	TypeShortInt Type = "short_int"
	TypeWord     Type = "word"
	TypeLongInt  Type = "long_int"
	TypeDWord    Type = "dword"
	TypeFloat    Type = "float"
	TypeString   Type = "string"
)

var ErrUnsupportedType = errors.New("value: unsupported type")

// Width returns the wire byte width of t, or 0 for variable-length
// and unknown types.
func (t Type) Width() int {
	switch t {
	case TypeByte, TypeBool:
		return 1
	case TypeShortInt, TypeWord:
		return 2
	case TypeLongInt, TypeDWord, TypeFloat:
		return 4
	default:
		return 0
	}
}

// Encode packs a logical value for the wire. Non-float values are
// divided by 10^exponent and rounded to the nearest integer before
// packing little-endian; floats carry their own scale and are packed
// as IEEE-754 without exponent scaling.
func Encode(v Value, typ Type, exponent int) ([]byte, error) {
	if typ == TypeFloat {
		f, ok := v.AsFloat()
		if !ok {
			return nil, ErrUnsupportedType
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(f))), nil
	}

	var n int64
	switch v.Kind {
	case KindBoolean:
		if v.Bool {
			n = 1
		}
	case KindInteger, KindFloat:
		f, _ := v.AsFloat()
		if exponent != 0 {
			f /= math.Pow(10, float64(exponent))
		}
		n = int64(math.Round(f))
	default:
		return nil, ErrUnsupportedType
	}

	switch typ {
	case TypeByte, TypeBool:
		return []byte{byte(n)}, nil
	case TypeShortInt, TypeWord:
		return binary.LittleEndian.AppendUint16(nil, uint16(n)), nil
	case TypeLongInt, TypeDWord:
		return binary.LittleEndian.AppendUint32(nil, uint32(n)), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// Decode unpacks raw wire bytes into a logical value. Insufficient
// bytes or an unknown type yield Absent rather than an error: an
// undecodable reading and a missing reading are the same thing to
// every layer above.
func Decode(data []byte, typ Type, exponent int) Value {
	if w := typ.Width(); w > 0 && len(data) < w {
		return Absent()
	}

	switch typ {
	case TypeBool:
		return Boolean(data[0] != 0)
	case TypeString:
		s := string(data)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return Text(strings.TrimSpace(s))
	case TypeFloat:
		f := float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
		return Float(round2(f))
	}

	var n int64
	switch typ {
	case TypeByte:
		n = int64(data[0])
	case TypeShortInt:
		n = int64(int16(binary.LittleEndian.Uint16(data)))
	case TypeWord:
		n = int64(binary.LittleEndian.Uint16(data))
	case TypeLongInt:
		n = int64(int32(binary.LittleEndian.Uint32(data)))
	case TypeDWord:
		n = int64(binary.LittleEndian.Uint32(data))
	default:
		return Absent()
	}

	if exponent != 0 {
		return Float(round2(float64(n) * math.Pow(10, float64(exponent))))
	}
	return Int(n)
}

// ParseType normalizes a register-map type name.
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeByte:
		return TypeByte, true
	case TypeBool, "boolean":
		return TypeBool, true
	case TypeShortInt, "short-int", "shortint", "int":
		return TypeShortInt, true
	case TypeWord:
		return TypeWord, true
	case TypeLongInt, "long-int", "longint":
		return TypeLongInt, true
	case TypeDWord:
		return TypeDWord, true
	case TypeFloat, "real":
		return TypeFloat, true
	case TypeString:
		return TypeString, true
	default:
		return "", false
	}
}
