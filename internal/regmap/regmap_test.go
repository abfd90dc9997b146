package regmap

import (
	"strings"
	"testing"

	"github.com/boilerlink/econetd/internal/econet/value"
)

const sample = `
tempcwu:
  id: 1280
  type: short_int
  exponent: -1
  min: -20
  max: 100
hdwtsetpoint:
  id: 1281
  type: byte
  exponent: 0
  min: 20
  max: 70
  max_delta: 30
boilerpower:
  id: 1282
  type: float
  exponent: 0
`

func TestParseValidMap(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("len = %d, want 3", m.Len())
	}
	d, ok := m.Lookup("tempcwu")
	if !ok {
		t.Fatal("tempcwu missing")
	}
	if d.ID != 1280 || d.Type != value.TypeShortInt || d.Exponent != -1 {
		t.Fatalf("unexpected definition: %+v", d)
	}
	if d.Min == nil || *d.Min != -20 || d.Max == nil || *d.Max != 100 {
		t.Fatalf("bounds not loaded: %+v", d)
	}
	if !d.HasBounds() {
		t.Fatal("HasBounds should be true")
	}
	if d, _ := m.Lookup("boilerpower"); d.HasBounds() {
		t.Fatal("boilerpower has no declared bounds")
	}
}

func TestParseRejectsDuplicateID(t *testing.T) {
	_, err := Parse([]byte("a:\n  id: 1\n  type: byte\nb:\n  id: 1\n  type: byte\n"))
	if err == nil || !strings.Contains(err.Error(), "share id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte("a:\n  id: 1\n  type: quad\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestParseRejectsInvertedBounds(t *testing.T) {
	_, err := Parse([]byte("a:\n  id: 1\n  type: byte\n  min: 50\n  max: 10\n"))
	if err == nil {
		t.Fatal("expected inverted bounds error")
	}
}

func TestSlugsSorted(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	slugs := m.Slugs()
	want := []string{"boilerpower", "hdwtsetpoint", "tempcwu"}
	for i, s := range want {
		if slugs[i] != s {
			t.Fatalf("slugs = %v, want %v", slugs, want)
		}
	}
}
