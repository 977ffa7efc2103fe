package models

import (
	"time"
)

// Date range presets offered by the listing page.
const (
	DateRangeAll       = "All Dates"
	DateRangeThisWeek  = "This Week"
	DateRangeThisMonth = "This Month"
	DateRangeNextMonth = "Next Month"
)

// EventFilter narrows an upcoming-events query. Only approved events are
// ever returned and results are ordered by start date ascending.
type EventFilter struct {
	From     time.Time  `json:"from"`
	Until    *time.Time `json:"until,omitempty"`
	Category *Category  `json:"category,omitempty"`
	Search   string     `json:"search,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// Matches reports whether an event satisfies the filter. SQL stores express
// the same predicate in their WHERE clause.
func (f EventFilter) Matches(e Event, search func(title, needle string) bool) bool {
	if !e.IsApproved {
		return false
	}
	if e.StartDate.Before(f.From) {
		return false
	}
	if f.Until != nil && e.StartDate.After(*f.Until) {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Search != "" && !search(e.Title, f.Search) {
		return false
	}
	return true
}

// ResolveDateRange turns a preset into query bounds, computed in now's
// location. Unknown presets behave like "All Dates": everything from now on.
func ResolveDateRange(preset string, now time.Time) (time.Time, *time.Time) {
	loc := now.Location()
	y, m, d := now.Date()

	switch preset {
	case DateRangeThisWeek:
		start := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
		sy, sm, sd := start.Date()
		end := time.Date(sy, sm, sd+6, 23, 59, 59, int(999*time.Millisecond), loc)
		return start, &end
	case DateRangeThisMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end := time.Date(y, m+1, 0, 23, 59, 59, int(999*time.Millisecond), loc)
		return start, &end
	case DateRangeNextMonth:
		start := time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
		end := time.Date(y, m+2, 0, 23, 59, 59, int(999*time.Millisecond), loc)
		return start, &end
	default:
		return now, nil
	}
}

// FilterFromParams builds a filter from listing-page parameters. "All" and
// unknown categories disable category filtering.
func FilterFromParams(category, dateRange, search string, now time.Time) EventFilter {
	from, until := ResolveDateRange(dateRange, now)
	filter := EventFilter{From: from, Until: until, Search: search}

	if c := Category(category); c.IsValid() {
		filter.Category = &c
	}
	return filter
}
