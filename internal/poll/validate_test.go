package poll

import (
	"testing"

	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/regmap"
)

func fptr(f float64) *float64 { return &f }

func TestValidateRejectsAbsent(t *testing.T) {
	ok, reason := validate(regmap.Definition{}, "tempcwu", value.Absent(), value.Absent())
	if ok || reason != "absent" {
		t.Fatalf("got ok=%v reason=%q", ok, reason)
	}
}

func TestValidateRejectsSentinelRegardlessOfBounds(t *testing.T) {
	defs := []regmap.Definition{
		{},
		{Min: fptr(0), Max: fptr(2000)}, // bounds that would admit 999
	}
	for _, def := range defs {
		for _, raw := range []value.Value{value.Int(999), value.Float(999.0)} {
			ok, reason := validate(def, "worktime", raw, value.Absent())
			if ok || reason != "sentinel" {
				t.Fatalf("def=%+v raw=%v: got ok=%v reason=%q", def, raw, ok, reason)
			}
		}
	}
}

func TestValidateDeviceBoundsTakePrecedence(t *testing.T) {
	// Device allows up to 120; generic "temp" range would cap at 100.
	def := regmap.Definition{Min: fptr(-30), Max: fptr(120)}
	if ok, _ := validate(def, "tempclutch", value.Float(110), value.Absent()); !ok {
		t.Fatal("device-declared bounds should override generic temp range")
	}
	if ok, reason := validate(def, "tempclutch", value.Float(130), value.Absent()); ok || reason != "above_max" {
		t.Fatalf("got ok=%v reason=%q", ok, reason)
	}
	if ok, reason := validate(def, "tempclutch", value.Float(-40), value.Absent()); ok || reason != "below_min" {
		t.Fatalf("got ok=%v reason=%q", ok, reason)
	}
}

func TestValidateMaxDeltaNeedsPreviousValue(t *testing.T) {
	def := regmap.Definition{MaxDelta: fptr(10)}
	if ok, _ := validate(def, "buforsetpoint", value.Float(70), value.Absent()); !ok {
		t.Fatal("no previous value: delta check cannot apply")
	}
	if ok, reason := validate(def, "buforsetpoint", value.Float(70), value.Float(40)); ok || reason != "delta" {
		t.Fatalf("got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := validate(def, "buforsetpoint", value.Float(45), value.Float(40)); !ok {
		t.Fatal("within delta should pass")
	}
}

func TestValidateGenericRanges(t *testing.T) {
	cases := []struct {
		slug string
		val  float64
		ok   bool
	}{
		{"tempcwu", 55, true},
		{"tempcwu", 150, false},
		{"tempcwu", -25, false},
		{"mixer1valveposition", 50, true},
		{"mixer1valveposition", 101, false},
		{"exhpressure", 2.5, true},
		{"exhpressure", 5.0, false},
		{"lambdalevel", 12, true},
		{"lambdalevel", 26, false},
		{"worktime", 1e9, true}, // no keyword, no bounds: accepted
	}
	for _, tc := range cases {
		ok, _ := validate(regmap.Definition{}, tc.slug, value.Float(tc.val), value.Absent())
		if ok != tc.ok {
			t.Fatalf("%s=%v: got ok=%v want %v", tc.slug, tc.val, ok, tc.ok)
		}
	}
}

func TestValidateFirstKeywordWins(t *testing.T) {
	// "temppressure" matches "temp" first; 3.5 is out of the temp
	// range only if below -20 or above 100, so it passes even though
	// it would also pass "pressure". 120 fails on the temp rule even
	// though no pressure bound applies beyond 4.
	if ok, _ := validate(regmap.Definition{}, "temppressure", value.Float(3.5), value.Absent()); !ok {
		t.Fatal("3.5 passes the first matching rule (temp)")
	}
	if ok, _ := validate(regmap.Definition{}, "temppressure", value.Float(120), value.Absent()); ok {
		t.Fatal("120 fails the first matching rule (temp)")
	}
}

func TestValidateNonNumericAccepted(t *testing.T) {
	if ok, _ := validate(regmap.Definition{}, "devicename", value.Text("ecoMAX860"), value.Absent()); !ok {
		t.Fatal("text accepted unconditionally")
	}
	if ok, _ := validate(regmap.Definition{Min: fptr(0)}, "hdwstartoneloading", value.Boolean(true), value.Absent()); !ok {
		t.Fatal("bool accepted: bounds apply to numeric variants only")
	}
}
