package poll

import (
	"strings"

	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/regmap"
)

// sentinelReading is the protocol's reserved "disconnected sensor"
// value; an exact numeric match in either representation.
const sentinelReading = 999

// genericRanges maps slug keywords to physical-plausibility bounds.
// Order matters: only the first matching keyword applies.
var genericRanges = []struct {
	keyword  string
	min, max float64
}{
	{"temp", -20, 100},
	{"power", 0, 100},
	{"fan", 0, 100},
	{"valveposition", 0, 100},
	{"pressure", 0, 4},
	{"lambda", 0, 25},
}

// validate decides whether a fresh reading may enter the cache.
// Checks apply in strict order, first match wins: absent, sentinel,
// device-declared bounds (which take precedence over and skip the
// generic keyword ranges), then generic ranges. A numeric reading
// matching no rule, and any non-numeric reading, is accepted.
func validate(def regmap.Definition, slug string, raw, prev value.Value) (bool, string) {
	if raw.IsAbsent() {
		return false, "absent"
	}

	f, numeric := raw.AsFloat()
	if numeric && f == sentinelReading {
		return false, "sentinel"
	}
	if !numeric {
		return true, ""
	}

	if def.HasBounds() {
		if def.Min != nil && f < *def.Min {
			return false, "below_min"
		}
		if def.Max != nil && f > *def.Max {
			return false, "above_max"
		}
		if def.MaxDelta != nil {
			if p, ok := prev.AsFloat(); ok && abs(p-f) > *def.MaxDelta {
				return false, "delta"
			}
		}
		return true, ""
	}

	for _, r := range genericRanges {
		if !strings.Contains(slug, r.keyword) {
			continue
		}
		if f < r.min || f > r.max {
			return false, "range"
		}
		break
	}
	return true, ""
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
