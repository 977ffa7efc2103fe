package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sdtechevents/eventhub/internal/models"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
	defaultRunLimit   = 20
	maxRunLimit       = 200
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// parseLimit reads the "limit" query parameter, applying def when absent
// and rejecting values outside 1..max.
func parseLimit(q url.Values, def, max int) (int, error) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, ValidationError{Field: "limit", Message: fmt.Sprintf("must be an integer between 1 and %d", max)}
	}
	return n, nil
}

// ValidateCategory accepts "", "All" or a member of the taxonomy.
func ValidateCategory(category string) error {
	if category == "" || category == "All" || models.Category(category).IsValid() {
		return nil
	}
	return ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)}
}

// ValidateDateRange accepts "" or one of the listing presets.
func ValidateDateRange(preset string) error {
	switch preset {
	case "", models.DateRangeAll, models.DateRangeThisWeek, models.DateRangeThisMonth, models.DateRangeNextMonth:
		return nil
	}
	return ValidationError{Field: "range", Message: fmt.Sprintf("unknown date range %q", preset)}
}
