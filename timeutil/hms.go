/*
hms.go - Duration tuple arithmetic

PURPOSE:
  Converts between raw second counts, decimal hours, and the
  (hours, minutes, seconds) tuples the reconciliation figures are
  reported in. Pure functions, no state.

PRECISION:
  Policy hours are decimal.Decimal (e.g. 7.5 hours/day). Conversions
  round to whole seconds; no floating point drift.
*/
package timeutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HMS - (hours, minutes, seconds) duration tuple
// =============================================================================

// HMS is a duration broken into hours, minutes and seconds. Minutes and
// Seconds are always in [0, 59]; Negative carries the sign for the whole
// tuple (raw overtime differences may be negative when the policy has
// overtime computation disabled).
type HMS struct {
	Hours    int  `json:"hours"`
	Minutes  int  `json:"minutes"`
	Seconds  int  `json:"seconds"`
	Negative bool `json:"negative,omitempty"`
}

// FromSeconds converts a signed second count to an HMS tuple.
func FromSeconds(total int64) HMS {
	neg := total < 0
	if neg {
		total = -total
	}
	return HMS{
		Hours:    int(total / 3600),
		Minutes:  int((total % 3600) / 60),
		Seconds:  int(total % 60),
		Negative: neg && total != 0,
	}
}

// FromDecimalHours converts decimal hours (e.g. 7.5) to an HMS tuple,
// rounding to the nearest whole second.
func FromDecimalHours(hours decimal.Decimal) HMS {
	secs := hours.Mul(decimal.NewFromInt(3600)).Round(0).IntPart()
	return FromSeconds(secs)
}

// TotalSeconds returns the signed second count of the tuple.
func (d HMS) TotalSeconds() int64 {
	total := int64(d.Hours)*3600 + int64(d.Minutes)*60 + int64(d.Seconds)
	if d.Negative {
		return -total
	}
	return total
}

// DecimalHours returns the tuple as decimal hours.
func (d HMS) DecimalHours() decimal.Decimal {
	return decimal.NewFromInt(d.TotalSeconds()).Div(decimal.NewFromInt(3600))
}

// IsZero reports whether the tuple is exactly zero.
func (d HMS) IsZero() bool { return d.TotalSeconds() == 0 }

// Add returns the sum of two tuples.
func (d HMS) Add(other HMS) HMS { return FromSeconds(d.TotalSeconds() + other.TotalSeconds()) }

// Sub returns the difference of two tuples.
func (d HMS) Sub(other HMS) HMS { return FromSeconds(d.TotalSeconds() - other.TotalSeconds()) }

// String renders "h:mm:ss", with a leading "-" for negative durations.
func (d HMS) String() string {
	sign := ""
	if d.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, d.Hours, d.Minutes, d.Seconds)
}

// ParseHMS parses "h:mm:ss" (optionally signed) back into a tuple.
// Used when a caller overrides computed overtime/undertime.
func ParseHMS(s string) (HMS, error) {
	raw := strings.TrimSpace(s)
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return HMS{}, fmt.Errorf("invalid duration %q: want h:mm:ss", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return HMS{}, fmt.Errorf("invalid duration %q: want h:mm:ss", s)
		}
		nums[i] = n
	}
	if nums[1] > 59 || nums[2] > 59 {
		return HMS{}, fmt.Errorf("invalid duration %q: minutes and seconds must be < 60", s)
	}

	total := int64(nums[0])*3600 + int64(nums[1])*60 + int64(nums[2])
	if neg {
		total = -total
	}
	return FromSeconds(total), nil
}
