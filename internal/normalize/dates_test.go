package normalize

import (
	"testing"
	"time"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		input        string
		hour, minute int
	}{
		{"6:30 PM", 18, 30},
		{"6:30pm", 18, 30},
		{"12:00 PM", 12, 0},
		{"12:15 AM", 0, 15},
		{"9:05 AM", 9, 5},
		{"noon-ish", 18, 0},
		{"13:00 PM", 18, 0},
		{"", 18, 0},
	}

	for _, tt := range tests {
		h, m := ParseClockTime(tt.input)
		if h != tt.hour || m != tt.minute {
			t.Errorf("ParseClockTime(%q) = %d:%02d, want %d:%02d", tt.input, h, m, tt.hour, tt.minute)
		}
	}
}

func TestDateParser_Parse(t *testing.T) {
	// 2026-04-01 04:00 in the Pacific offset.
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	p := DateParser{Now: func() time.Time { return now }, Location: Pacific}

	utc := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		when     string
		fallback string
		want     time.Time
	}{
		{"rolls past dates into next year", "Jan 5, 6:00 PM", "", utc(2027, 1, 6, 2, 0)},
		{"later this year", "Mar 5, 6:30 PM – Mar 5, 8:30 PM", "", utc(2027, 3, 6, 2, 30)},
		{"today is not rolled", "Apr 1, 7:00 PM", "", utc(2026, 4, 2, 3, 0)},
		{"weekday prefix", "Fri, Apr 10, 6:30 PM – 8:30 PM", "", utc(2026, 4, 11, 2, 30)},
		{"full weekday and month", "Saturday, May 2, 10:00 AM", "", utc(2026, 5, 2, 18, 0)},
		{"no time defaults to 6pm", "May 2", "", utc(2026, 5, 3, 2, 0)},
		{"tomorrow with time", "Tomorrow, 6:30 PM", "", utc(2026, 4, 3, 2, 30)},
		{"tomorrow without time", "Tomorrow", "", utc(2026, 4, 3, 2, 0)},
		{"fallback field", "Every other Thursday", "June 4", utc(2026, 6, 5, 2, 0)},
		{"unknown month uses fallback", "Smarch 3, 6:00 PM", "Feb 1", utc(2027, 2, 2, 2, 0)},
		{"nothing parseable", "TBA", "", now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.when, tt.fallback)
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q, %q) = %v, want %v", tt.when, tt.fallback, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC result, got %v", got.Location())
			}
		})
	}
}

func TestDateParser_TodayUsesPacificCalendar(t *testing.T) {
	// 03:00 UTC on Apr 2 is still Apr 1 in the Pacific offset, so "Apr 1"
	// has not passed yet.
	now := time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)
	p := DateParser{Now: func() time.Time { return now }}

	got := p.Parse("Apr 1, 8:00 PM", "")
	if want := time.Date(2026, 4, 2, 4, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}
}

func TestParseNaturalDateUsesWallClock(t *testing.T) {
	before := time.Now()
	got := ParseNaturalDate("Tomorrow, 7:00 PM", "")

	if d := got.Sub(before); d <= 0 || d > 48*time.Hour {
		t.Errorf("tomorrow evening is %v from now", d)
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC result, got %v", got.Location())
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2026-05-01T01:00:00Z", time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC), true},
		{"2026-05-14T18:00:00-07:00", time.Date(2026, 5, 15, 1, 0, 0, 0, time.UTC), true},
		{"2026-05-14T18:00:00-0700", time.Date(2026, 5, 15, 1, 0, 0, 0, time.UTC), true},
		{"2026-05-14T18:00-07:00", time.Date(2026, 5, 15, 1, 0, 0, 0, time.UTC), true},
		{"2026-05-14T18:00:00", time.Date(2026, 5, 15, 2, 0, 0, 0, time.UTC), true},
		{"2026-05-14", time.Date(2026, 5, 14, 8, 0, 0, 0, time.UTC), true},
		{"next tuesday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.input)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
