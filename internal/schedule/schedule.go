// Package schedule decodes the controller's half-day schedule
// registers. Each AM/PM register is a 24-bit mask, one bit per
// 30-minute slot, bit set meaning comfort mode.
package schedule

import "fmt"

const (
	slotsPerHalfDay = 24
	slotsPerDay     = 2 * slotsPerHalfDay
	slotMinutes     = 30
)

// Interval is one contiguous comfort period within a day, expressed
// in minutes since midnight. End is exclusive; a period running to
// midnight has End == 1440.
type Interval struct {
	Start int `json:"start_min"`
	End   int `json:"end_min"`
}

func (iv Interval) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		iv.Start/60, iv.Start%60, iv.End/60, iv.End%60)
}

// DecodeDay merges the AM (00:00-12:00) and PM (12:00-24:00) masks
// into contiguous comfort intervals.
func DecodeDay(am, pm uint32) []Interval {
	var out []Interval
	start := -1
	for slot := 0; slot < slotsPerDay; slot++ {
		active := bitSet(am, pm, slot)
		switch {
		case active && start < 0:
			start = slot
		case !active && start >= 0:
			out = append(out, Interval{Start: start * slotMinutes, End: slot * slotMinutes})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Interval{Start: start * slotMinutes, End: slotsPerDay * slotMinutes})
	}
	return out
}

// EncodeDay packs comfort intervals back into the AM/PM masks.
// Interval bounds are clamped to the day and snapped down to
// 30-minute slots.
func EncodeDay(intervals []Interval) (am, pm uint32) {
	for _, iv := range intervals {
		startSlot := clampSlot(iv.Start / slotMinutes)
		endSlot := clampSlot((iv.End + slotMinutes - 1) / slotMinutes)
		for slot := startSlot; slot < endSlot; slot++ {
			if slot < slotsPerHalfDay {
				am |= 1 << uint(slot)
			} else {
				pm |= 1 << uint(slot-slotsPerHalfDay)
			}
		}
	}
	return am, pm
}

func bitSet(am, pm uint32, slot int) bool {
	if slot < slotsPerHalfDay {
		return am>>uint(slot)&1 == 1
	}
	return pm>>uint(slot-slotsPerHalfDay)&1 == 1
}

func clampSlot(s int) int {
	if s < 0 {
		return 0
	}
	if s > slotsPerDay {
		return slotsPerDay
	}
	return s
}
