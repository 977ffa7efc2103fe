package models

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds EventInput.Description, in characters.
const MaxDescriptionLength = 500

// Source names the adapter an event was ingested from.
type Source string

const (
	SourceEventbrite  Source = "eventbrite"
	SourceSerpAPI     Source = "serpapi"
	SourceSDTechScene Source = "sdtechscene"
)

// Category is the display bucket an event is filed under.
type Category string

const (
	CategoryAIML           Category = "AI / ML"
	CategoryStartup        Category = "Startup"
	CategoryWeb3           Category = "Web3"
	CategoryDesign         Category = "Design"
	CategoryNetworking     Category = "Networking"
	CategoryWorkshops      Category = "Workshops"
	CategoryDeveloperTools Category = "Developer Tools"
)

// Categories lists the full taxonomy in display order.
var Categories = []Category{
	CategoryAIML,
	CategoryStartup,
	CategoryWeb3,
	CategoryDesign,
	CategoryNetworking,
	CategoryWorkshops,
	CategoryDeveloperTools,
}

// IsValid reports whether c belongs to the fixed taxonomy.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// EventInput is the canonical, store-ready shape every adapter maps into.
// (Source, SourceID) is the natural key used for upserts.
type EventInput struct {
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Location      *string    `json:"location"`
	IsOnline      bool       `json:"is_online"`
	URL           string     `json:"url"`
	Source        Source     `json:"source"`
	SourceID      string     `json:"source_id"`
	Category      Category   `json:"category"`
	IsFree        *bool      `json:"is_free"`
	PriceLabel    *string    `json:"price_label"`
	OrganizerName *string    `json:"organizer_name"`
	OrganizerURL  *string    `json:"organizer_url"`
	ImageURL      *string    `json:"image_url"`
	Tags          []string   `json:"tags"`
	IsApproved    bool       `json:"is_approved"`
}

// Event is a stored canonical event.
type Event struct {
	ID string `json:"id"`
	EventInput
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrInvalidEvent is wrapped by every Validate failure.
var ErrInvalidEvent = errors.New("invalid event")

// Validate checks the invariants a store relies on before writing.
func (e EventInput) Validate() error {
	switch {
	case e.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case e.URL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidEvent)
	case e.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidEvent)
	case e.SourceID == "":
		return fmt.Errorf("%w: source_id is required", ErrInvalidEvent)
	case e.StartDate.IsZero():
		return fmt.Errorf("%w: start_date is required", ErrInvalidEvent)
	case !e.Category.IsValid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEvent, e.Category)
	}

	if e.Description != nil && utf8.RuneCountInString(*e.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidEvent, MaxDescriptionLength)
	}

	return nil
}

// NaturalKey returns the (source, source_id) pair as a single map key.
func (e EventInput) NaturalKey() string {
	return string(e.Source) + "\x00" + e.SourceID
}
