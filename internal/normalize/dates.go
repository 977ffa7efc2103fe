package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pacific is the constant UTC-8 offset listings are assumed to be written in.
// It deliberately ignores daylight saving; see DESIGN.md.
var Pacific = time.FixedZone("PST", -8*60*60)

const (
	defaultHour   = 18
	defaultMinute = 0
)

var (
	tomorrowPattern = regexp.MustCompile(`(?i)^\s*tomorrow`)
	clockPattern    = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)
	weekdayPattern  = regexp.MustCompile(`(?i)^\s*(mon|tue|wed|thu|fri|sat|sun)[a-z]*,\s*`)
	monthDayPattern = regexp.MustCompile(`(?i)^([a-z]+)\.?\s+(\d{1,2})\b(?:,\s*(\d{1,2}:\d{2}\s*(?:AM|PM)))?`)
	fallbackPattern = regexp.MustCompile(`(?i)^\s*([a-z]+)\.?\s+(\d{1,2})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseClockTime converts "6:30 PM" to 24-hour parts. Anything it cannot
// read yields 18:00.
func ParseClockTime(text string) (hour, minute int) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return defaultHour, defaultMinute
	}

	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return defaultHour, defaultMinute
	}

	switch strings.ToUpper(m[3]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute
}

// DateParser resolves the loose "when" strings search APIs return.
type DateParser struct {
	Now      func() time.Time
	Location *time.Location
}

// NewDateParser returns a parser on the wall clock in the Pacific offset.
func NewDateParser() DateParser {
	return DateParser{Now: time.Now, Location: Pacific}
}

// ParseNaturalDate is DateParser.Parse against the current time.
func ParseNaturalDate(when, fallback string) time.Time {
	return NewDateParser().Parse(when, fallback)
}

// Parse understands, in order: "Tomorrow[, 6:30 PM]", an optional leading
// weekday ("Fri, "), "Mar 5[, 6:30 PM]" and finally a "March 5" fallback
// field. Month/day values that already passed this year roll to next year.
// The result is in UTC; unparseable input yields the current instant.
func (p DateParser) Parse(when, fallback string) time.Time {
	now := p.now()
	today := now.In(p.location())

	if tomorrowPattern.MatchString(when) {
		hour, minute := ParseClockTime(when)
		return p.at(today.Year(), today.Month(), today.Day()+1, hour, minute)
	}

	stripped := weekdayPattern.ReplaceAllString(when, "")
	if m := monthDayPattern.FindStringSubmatch(strings.TrimSpace(stripped)); m != nil {
		if month, day, ok := monthDay(m[1], m[2]); ok {
			hour, minute := defaultHour, defaultMinute
			if m[3] != "" {
				hour, minute = ParseClockTime(m[3])
			}
			return p.at(nextYear(today, month, day), month, day, hour, minute)
		}
	}

	if m := fallbackPattern.FindStringSubmatch(fallback); m != nil {
		if month, day, ok := monthDay(m[1], m[2]); ok {
			return p.at(nextYear(today, month, day), month, day, defaultHour, defaultMinute)
		}
	}

	return now.UTC()
}

func (p DateParser) at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, p.location()).UTC()
}

func (p DateParser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p DateParser) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return Pacific
}

func monthDay(name, dayText string) (time.Month, int, bool) {
	month, ok := months[strings.ToLower(name)]
	if !ok {
		return 0, 0, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return 0, 0, false
	}
	return month, day, true
}

// nextYear picks the year of the next occurrence of month/day on or after today.
func nextYear(today time.Time, month time.Month, day int) int {
	year := today.Year()
	if month < today.Month() || (month == today.Month() && day < today.Day()) {
		year++
	}
	return year
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads the ISO-8601 variants structured sources use. Values
// without an offset are taken as Pacific wall-clock time. Results are UTC.
func ParseTimestamp(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, text, Pacific); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
