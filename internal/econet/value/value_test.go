package value

import (
	"errors"
	"math"
	"testing"
)

func TestDecodeScalesByExponent(t *testing.T) {
	// 205 raw with exponent -1 reads as 20.5.
	v := Decode([]byte{0xCD, 0x00}, TypeShortInt, -1)
	if v.Kind != KindFloat || v.Flt != 20.5 {
		t.Fatalf("got %v, want 20.5", v)
	}
}

func TestDecodeZeroExponentStaysInteger(t *testing.T) {
	v := Decode([]byte{0x39, 0x05}, TypeWord, 0)
	if v.Kind != KindInteger || v.Int != 1337 {
		t.Fatalf("got %v, want integer 1337", v)
	}
}

func TestDecodeSignedWidths(t *testing.T) {
	if v := Decode([]byte{0xFF, 0xFF}, TypeShortInt, 0); v.Int != -1 {
		t.Fatalf("short_int: got %v, want -1", v)
	}
	if v := Decode([]byte{0xFF, 0xFF}, TypeWord, 0); v.Int != 65535 {
		t.Fatalf("word: got %v, want 65535", v)
	}
	if v := Decode([]byte{0xFE, 0xFF, 0xFF, 0xFF}, TypeLongInt, 0); v.Int != -2 {
		t.Fatalf("long_int: got %v, want -2", v)
	}
}

func TestDecodeFloatRoundsToTwoDecimals(t *testing.T) {
	raw, err := Encode(Float(21.456), TypeFloat, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	v := Decode(raw, TypeFloat, 0)
	if v.Kind != KindFloat || v.Flt != 21.46 {
		t.Fatalf("got %v, want 21.46", v)
	}
}

func TestDecodeInsufficientBytesIsAbsent(t *testing.T) {
	if v := Decode([]byte{0x01}, TypeLongInt, 0); !v.IsAbsent() {
		t.Fatalf("got %v, want absent", v)
	}
	if v := Decode(nil, TypeByte, 0); !v.IsAbsent() {
		t.Fatalf("got %v, want absent", v)
	}
}

func TestDecodeUnknownTypeIsAbsent(t *testing.T) {
	if v := Decode([]byte{1, 2, 3, 4}, Type("blob"), 0); !v.IsAbsent() {
		t.Fatalf("got %v, want absent", v)
	}
}

func TestDecodeString(t *testing.T) {
	v := Decode([]byte("ecoMAX\x00garbage"), TypeString, 0)
	if v.Kind != KindText || v.Text != "ecoMAX" {
		t.Fatalf("got %v, want text ecoMAX", v)
	}
}

func TestEncodeRoundTripWithinExponentTolerance(t *testing.T) {
	cases := []struct {
		val Value
		typ Type
		exp int
	}{
		{Float(20.5), TypeShortInt, -1},
		{Int(75), TypeByte, 0},
		{Float(3.7), TypeWord, -1},
		{Int(123456), TypeLongInt, 0},
		{Float(1.25), TypeFloat, 0},
		{Boolean(true), TypeBool, 0},
	}
	for _, tc := range cases {
		raw, err := Encode(tc.val, tc.typ, tc.exp)
		if err != nil {
			t.Fatalf("%v/%s: encode: %v", tc.val, tc.typ, err)
		}
		if w := tc.typ.Width(); len(raw) != w {
			t.Fatalf("%s: width %d, want %d", tc.typ, len(raw), w)
		}
		got := Decode(raw, tc.typ, tc.exp)
		a, aok := tc.val.AsFloat()
		b, bok := got.AsFloat()
		if aok && bok {
			tol := math.Pow(10, float64(tc.exp)) / 2
			if math.Abs(a-b) > tol {
				t.Fatalf("%v/%s: round trip %v, tolerance %v", tc.val, tc.typ, got, tol)
			}
			continue
		}
		if !tc.val.Equal(got) {
			t.Fatalf("%v/%s: round trip %v", tc.val, tc.typ, got)
		}
	}
}

func TestEncodeDividesByExponent(t *testing.T) {
	// 20.5 with exponent -1 packs as 205.
	raw, err := Encode(Float(20.5), TypeShortInt, -1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if raw[0] != 0xCD || raw[1] != 0x00 {
		t.Fatalf("got % X, want CD 00", raw)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := Encode(Text("abc"), TypeString, 0); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := Encode(Absent(), TypeWord, 0); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestEqualLooseNumeric(t *testing.T) {
	if !Int(20).Equal(Float(20.0)) {
		t.Fatal("20 should equal 20.0")
	}
	if Int(20).Equal(Float(20.5)) {
		t.Fatal("20 should not equal 20.5")
	}
	if !Text("eco").Equal(Text("eco")) {
		t.Fatal("text equality")
	}
	if Boolean(true).Equal(Int(1)) {
		t.Fatal("bool is not numeric")
	}
}

func TestParse(t *testing.T) {
	if v := Parse("45"); v.Kind != KindInteger || v.Int != 45 {
		t.Fatalf("got %v", v)
	}
	if v := Parse("20.5"); v.Kind != KindFloat || v.Flt != 20.5 {
		t.Fatalf("got %v", v)
	}
	if v := Parse("true"); v.Kind != KindBoolean || !v.Bool {
		t.Fatalf("got %v", v)
	}
	if v := Parse("eco"); v.Kind != KindText {
		t.Fatalf("got %v", v)
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"WORD": TypeWord, "short-int": TypeShortInt, "float": TypeFloat,
		"boolean": TypeBool, "dword": TypeDWord,
	} {
		got, ok := ParseType(in)
		if !ok || got != want {
			t.Fatalf("ParseType(%q) = %v,%v", in, got, ok)
		}
	}
	if _, ok := ParseType("quad"); ok {
		t.Fatal("quad should not parse")
	}
}
