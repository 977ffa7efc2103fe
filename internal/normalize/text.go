// Package normalize holds the text and date helpers every source adapter
// runs raw listing fields through before they become canonical events.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxDescriptionLength is the stored description limit, in characters.
const MaxDescriptionLength = 500

var (
	entityPattern     = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|amp|lt|gt|quot|apos|nbsp|hellip);`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	onlinePattern     = regexp.MustCompile(`(?i)online|virtual|zoom|remote`)
)

var namedEntities = map[string]string{
	"amp":    "&",
	"lt":     "<",
	"gt":     ">",
	"quot":   `"`,
	"apos":   "'",
	"nbsp":   " ",
	"hellip": "…",
}

// DecodeEntities replaces numeric character references and the common named
// entities WordPress and friends emit. Each reference is decoded once, so
// "&amp;lt;" becomes "&lt;" rather than "<".
func DecodeEntities(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}

	return entityPattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := ref[1 : len(ref)-1]
		if !strings.HasPrefix(name, "#") {
			return namedEntities[name]
		}

		var code int64
		var err error
		if len(name) > 1 && (name[1] == 'x' || name[1] == 'X') {
			code, err = strconv.ParseInt(name[2:], 16, 32)
		} else {
			code, err = strconv.ParseInt(name[1:], 10, 32)
		}
		if err != nil || code <= 0 || code > 0x10FFFF {
			return ref
		}
		return string(rune(code))
	})
}

// StripHTML decodes entities first (feeds often double-encode markup), then
// removes every tag and collapses whitespace.
func StripHTML(text string) string {
	text = DecodeEntities(text)
	text = tagPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text to at most n characters without splitting a rune.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

// Description produces the stored plain-text summary, or nil when nothing
// readable is left after stripping.
func Description(raw string) *string {
	cleaned := Truncate(StripHTML(raw), MaxDescriptionLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// IsOnlineLocation reports whether a location string describes a remote event.
func IsOnlineLocation(location string) bool {
	return onlinePattern.MatchString(location)
}

// IsPlaceholderCredential reports whether an API key is missing or still set
// to a template value such as "your_key_here".
func IsPlaceholderCredential(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "your_") && strings.HasSuffix(v, "_here") {
		return true
	}
	switch v {
	case "changeme", "change-me", "xxx", "todo":
		return true
	}
	return false
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
