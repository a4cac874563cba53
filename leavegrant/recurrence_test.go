package leavegrant

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeNextExecutionDateRepeat(t *testing.T) {
	tests := []struct {
		name      string
		today     time.Time
		frequency Frequency
		anchorDay int
		want      time.Time
	}{
		{
			// Anchor already passed this month: jump to next month.
			name:      "monthly after anchor",
			today:     date(2024, time.March, 20),
			frequency: FrequencyMonth,
			anchorDay: 15,
			want:      date(2024, time.April, 15),
		},
		{
			// Anchor still ahead this month: use it.
			name:      "monthly before anchor",
			today:     date(2024, time.March, 10),
			frequency: FrequencyMonth,
			anchorDay: 15,
			want:      date(2024, time.March, 15),
		},
		{
			// Today exactly on the anchor counts as passed.
			name:      "monthly on anchor",
			today:     date(2024, time.March, 15),
			frequency: FrequencyMonth,
			anchorDay: 15,
			want:      date(2024, time.April, 15),
		},
		{
			name:      "quarterly",
			today:     date(2024, time.March, 20),
			frequency: FrequencyQuarter,
			anchorDay: 1,
			want:      date(2024, time.June, 1),
		},
		{
			name:      "half yearly",
			today:     date(2024, time.March, 20),
			frequency: FrequencyHalfYear,
			anchorDay: 1,
			want:      date(2024, time.September, 1),
		},
		{
			name:      "yearly across year boundary",
			today:     date(2024, time.March, 20),
			frequency: FrequencyYear,
			anchorDay: 1,
			want:      date(2025, time.March, 1),
		},
		{
			// Day 31 clamps to April's 30 days instead of rolling to May.
			name:      "anchor clamps to month end",
			today:     date(2024, time.March, 31),
			frequency: FrequencyMonth,
			anchorDay: 31,
			want:      date(2024, time.April, 30),
		},
		{
			// Day 31 in February of a leap year clamps to the 29th.
			name:      "anchor clamps in february",
			today:     date(2024, time.January, 31),
			frequency: FrequencyMonth,
			anchorDay: 31,
			want:      date(2024, time.February, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeNextExecutionDate(tt.today, RecurrenceRepeat, tt.frequency, tt.anchorDay, nil)
			if err != nil {
				t.Fatalf("ComputeNextExecutionDate: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeNextExecutionDateOnce(t *testing.T) {
	today := date(2024, time.March, 10)
	explicit := date(2024, time.May, 1)

	got, err := ComputeNextExecutionDate(today, RecurrenceOnce, "", 0, &explicit)
	if err != nil {
		t.Fatalf("ComputeNextExecutionDate: %v", err)
	}
	if !got.Equal(explicit) {
		t.Errorf("got %v, want explicit date %v", got, explicit)
	}

	// Instants truncate to their calendar day.
	withTime := time.Date(2024, time.May, 1, 13, 45, 0, 0, time.UTC)
	got, err = ComputeNextExecutionDate(today, RecurrenceOnce, "", 0, &withTime)
	if err != nil {
		t.Fatalf("ComputeNextExecutionDate: %v", err)
	}
	if !got.Equal(explicit) {
		t.Errorf("got %v, want truncated %v", got, explicit)
	}

	if _, err := ComputeNextExecutionDate(today, RecurrenceOnce, "", 0, nil); err == nil {
		t.Error("expected error for once without an explicit date")
	}
}

func TestComputeNextExecutionDateRejectsBadInputs(t *testing.T) {
	today := date(2024, time.March, 10)

	if _, err := ComputeNextExecutionDate(today, RecurrenceRepeat, "weekly", 1, nil); err == nil {
		t.Error("expected error for unknown frequency")
	}
	if _, err := ComputeNextExecutionDate(today, RecurrenceRepeat, FrequencyMonth, 0, nil); err == nil {
		t.Error("expected error for anchor day 0")
	}
	if _, err := ComputeNextExecutionDate(today, RecurrenceRepeat, FrequencyMonth, 32, nil); err == nil {
		t.Error("expected error for anchor day 32")
	}
	if _, err := ComputeNextExecutionDate(today, "sometimes", FrequencyMonth, 1, nil); err == nil {
		t.Error("expected error for unknown recurrence")
	}
}

func TestNextAfter(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		frequency Frequency
		anchorDay int
		want      time.Time
	}{
		{"monthly", date(2024, time.April, 15), FrequencyMonth, 15, date(2024, time.May, 15)},
		{"quarterly", date(2024, time.April, 15), FrequencyQuarter, 15, date(2024, time.July, 15)},
		{"yearly", date(2024, time.April, 15), FrequencyYear, 15, date(2025, time.April, 15)},
		// Executed on a clamped date: the next period re-anchors to 31.
		{"re-anchors after clamp", date(2024, time.April, 30), FrequencyMonth, 31, date(2024, time.May, 31)},
		{"january to february clamp", date(2024, time.January, 31), FrequencyMonth, 31, date(2024, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextAfter(tt.from, tt.frequency, tt.anchorDay)
			if err != nil {
				t.Fatalf("NextAfter: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateFuture(t *testing.T) {
	today := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	if !ValidateFuture(today, date(2024, time.March, 10), RecurrenceOnce) {
		t.Error("same day rejected")
	}
	if !ValidateFuture(today, date(2024, time.March, 11), RecurrenceOnce) {
		t.Error("tomorrow rejected")
	}
	if ValidateFuture(today, date(2024, time.March, 9), RecurrenceOnce) {
		t.Error("yesterday accepted")
	}
	// Repeat dates are always computed, never user supplied.
	if !ValidateFuture(today, date(2020, time.January, 1), RecurrenceRepeat) {
		t.Error("repeat date rejected")
	}
}
