package core

import (
	"testing"
	"time"
)

func TestNextRecurringDate(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		interval RecurringInterval
		want     time.Time
	}{
		{
			name:     "daily",
			from:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			interval: Daily,
			want:     time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "weekly",
			from:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			interval: Weekly,
			want:     time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "monthly mid-month",
			from:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			interval: Monthly,
			want:     time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			// Jan 31 + 1 month normalizes forward, it is not clamped to
			// the last day of February. Leap year: Feb has 29 days, the
			// two overflow days land on Mar 2.
			name:     "monthly jan 31 leap year rollover",
			from:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			interval: Monthly,
			want:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			// Non-leap year: Feb has 28 days, three overflow days.
			name:     "monthly jan 31 non-leap rollover",
			from:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			interval: Monthly,
			want:     time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "yearly",
			from:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			interval: Yearly,
			want:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "yearly from feb 29",
			from:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			interval: Yearly,
			want:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "unknown interval returns input",
			from:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			interval: RecurringInterval("FORTNIGHTLY"),
			want:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRecurringDate(tt.from, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("NextRecurringDate(%v, %s) = %v, want %v", tt.from, tt.interval, got, tt.want)
			}
		})
	}
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2024, 7, 19, 13, 45, 2, 0, time.UTC)
	want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthStart(in); !got.Equal(want) {
		t.Errorf("MonthStart(%v) = %v, want %v", in, got, want)
	}
}

func TestSameMonth(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{
			name: "same month",
			a:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 7, 31, 23, 59, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "different month same year",
			a:    time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "same month different year",
			a:    time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameMonth(tt.a, tt.b); got != tt.want {
				t.Errorf("SameMonth(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPreviousMonthRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC)
	start, end := PreviousMonthRange(now)
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	// January crosses a year boundary
	start, end = PreviousMonthRange(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if want := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}
