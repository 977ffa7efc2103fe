package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/models"
	"github.com/sdtechevents/eventhub/internal/normalize"
)

// EventbriteConnector queries the Eventbrite search API for metro-area
// events. Pagination is reported by the API but only the first page is read.
type EventbriteConnector struct {
	cfg     config.EventbriteConfig
	fetcher *HTTPFetcher
	repo    EventRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewEventbriteConnector creates a new Eventbrite connector.
func NewEventbriteConnector(cfg config.EventbriteConfig, fetcher *HTTPFetcher, repo EventRepository, logger *slog.Logger) *EventbriteConnector {
	return &EventbriteConnector{
		cfg:     cfg,
		fetcher: fetcher,
		repo:    repo,
		logger:  logger.With("source", string(models.SourceEventbrite)),
		now:     time.Now,
	}
}

func (c *EventbriteConnector) Name() string {
	return string(models.SourceEventbrite)
}

type eventbriteResponse struct {
	Events     []eventbriteEvent `json:"events"`
	Pagination struct {
		HasMoreItems bool `json:"has_more_items"`
	} `json:"pagination"`
}

type eventbriteEvent struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text *string `json:"text"`
	} `json:"description"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	URL    string `json:"url"`
	IsFree bool   `json:"is_free"`
	Logo   *struct {
		URL string `json:"url"`
	} `json:"logo"`
	Venue *struct {
		Address *struct {
			LocalizedAddressDisplay string `json:"localized_address_display"`
		} `json:"address"`
	} `json:"venue"`
	Organizer *struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"organizer"`
}

// Fetch retrieves upcoming events and upserts them.
func (c *EventbriteConnector) Fetch(ctx context.Context) (FetchResult, error) {
	result := FetchResult{Source: c.Name()}

	if normalize.IsPlaceholderCredential(c.cfg.APIKey) {
		return result, &ConfigurationError{Source: c.Name(), Setting: "EVENTBRITE_API_KEY"}
	}

	resp, err := c.fetcher.Get(ctx, c.Name(), c.searchURL(), nil)
	if err != nil {
		return result, err
	}
	if !resp.OK() {
		return result, statusError(c.Name(), resp)
	}

	var payload eventbriteResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return result, &SourceError{Source: c.Name(), Message: "invalid response body", Err: err}
	}

	c.logger.Info("fetched eventbrite events",
		"count", len(payload.Events),
		"has_more_items", payload.Pagination.HasMoreItems,
	)

	records := make([]mapped, 0, len(payload.Events))
	for _, e := range payload.Events {
		records = append(records, mapEventbriteEvent(e))
	}

	result.Fetched = len(records)
	if err := storeRecords(ctx, c.repo, c.logger, &result, records); err != nil {
		return result, fmt.Errorf("eventbrite: %w", err)
	}
	return result, nil
}

func (c *EventbriteConnector) searchURL() string {
	params := url.Values{}
	params.Set("q", c.cfg.Query)
	params.Set("location.address", c.cfg.Address)
	params.Set("location.within", c.cfg.Within)
	params.Set("expand", "venue,organizer")
	params.Set("start_date.range_start", c.now().UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("sort_by", "date")
	params.Set("token", c.cfg.APIKey)
	return c.cfg.BaseURL + "?" + params.Encode()
}

func mapEventbriteEvent(e eventbriteEvent) mapped {
	title := strings.TrimSpace(normalize.DecodeEntities(e.Name.Text))
	if e.ID == "" || title == "" || e.URL == "" || e.Start.UTC == "" {
		return skip("missing required field")
	}

	start, ok := normalize.ParseTimestamp(e.Start.UTC)
	if !ok {
		return skip("unparseable start date")
	}

	input := models.EventInput{
		Title:      title,
		StartDate:  start,
		IsOnline:   false,
		URL:        e.URL,
		Source:     models.SourceEventbrite,
		SourceID:   e.ID,
		IsApproved: true,
	}

	var descText string
	if e.Description.Text != nil {
		descText = *e.Description.Text
		input.Description = normalize.Description(descText)
	}
	input.Category = normalize.Categorize(title, descText)

	if end, ok := normalize.ParseTimestamp(e.End.UTC); ok {
		input.EndDate = &end
	}

	if e.Venue != nil && e.Venue.Address != nil {
		input.Location = normalize.StringPtr(e.Venue.Address.LocalizedAddressDisplay)
	}

	isFree := e.IsFree
	input.IsFree = &isFree
	if isFree {
		input.PriceLabel = normalize.StringPtr("Free")
	} else {
		input.PriceLabel = normalize.StringPtr("Paid")
	}

	if e.Organizer != nil {
		input.OrganizerName = normalize.StringPtr(e.Organizer.Name)
		input.OrganizerURL = normalize.StringPtr(e.Organizer.URL)
	}
	if e.Logo != nil {
		input.ImageURL = normalize.StringPtr(e.Logo.URL)
	}

	return keep(input)
}
