package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/models"
	"github.com/sdtechevents/eventhub/internal/normalize"
)

var freePricePattern = regexp.MustCompile(`(?i)free`)

// SerpAPIConnector runs several Google Events searches through SerpAPI,
// merges them by link and upserts the union.
type SerpAPIConnector struct {
	cfg     config.SerpAPIConfig
	fetcher *HTTPFetcher
	repo    EventRepository
	logger  *slog.Logger
	dates   normalize.DateParser
}

// NewSerpAPIConnector creates a new SerpAPI connector.
func NewSerpAPIConnector(cfg config.SerpAPIConfig, fetcher *HTTPFetcher, repo EventRepository, logger *slog.Logger) *SerpAPIConnector {
	return &SerpAPIConnector{
		cfg:     cfg,
		fetcher: fetcher,
		repo:    repo,
		logger:  logger.With("source", string(models.SourceSerpAPI)),
		dates:   normalize.NewDateParser(),
	}
}

func (c *SerpAPIConnector) Name() string {
	return string(models.SourceSerpAPI)
}

type serpResponse struct {
	EventsResults []serpEvent `json:"events_results"`
	Error         string      `json:"error"`
}

type serpEvent struct {
	Title string `json:"title"`
	Date  struct {
		StartDate string `json:"start_date"`
		When      string `json:"when"`
	} `json:"date"`
	Address     []string `json:"address"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	TicketInfo  []struct {
		Source string `json:"source"`
		Link   string `json:"link"`
		Price  string `json:"price"`
	} `json:"ticket_info"`
	Venue *struct {
		Name string `json:"name"`
	} `json:"venue"`
	Thumbnail string `json:"thumbnail"`
}

type queryOutcome struct {
	events []serpEvent
	err    error
}

// Fetch runs every configured query concurrently. A failing query is logged
// and counted; the run fails only when no query succeeds.
func (c *SerpAPIConnector) Fetch(ctx context.Context) (FetchResult, error) {
	result := FetchResult{Source: c.Name()}

	if normalize.IsPlaceholderCredential(c.cfg.APIKey) {
		return result, &ConfigurationError{Source: c.Name(), Setting: "SERPAPI_KEY"}
	}

	outcomes := make([]queryOutcome, len(c.cfg.Queries))
	var wg sync.WaitGroup
	for i, q := range c.cfg.Queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			events, err := c.fetchQuery(ctx, q)
			outcomes[i] = queryOutcome{events: events, err: err}
		}(i, q)
	}
	wg.Wait()

	// Merge in query order so the first occurrence of a link wins.
	var (
		all  []serpEvent
		errs []error
	)
	for i, o := range outcomes {
		if o.err != nil {
			c.logger.Error("serpapi query failed", "query", c.cfg.Queries[i], "error", o.err)
			errs = append(errs, o.err)
			continue
		}
		all = append(all, o.events...)
	}
	result.QueryErrors = len(errs)

	if len(outcomes) > 0 && len(errs) == len(outcomes) {
		return result, &SourceError{
			Source:  c.Name(),
			Message: fmt.Sprintf("all %d queries failed", len(errs)),
			Err:     errors.Join(errs...),
		}
	}

	filter := NewDeduplicationFilter(NewLinkDeduplicator(), func(e serpEvent) string { return e.Link })
	unique := filter.Filter(all)
	stats := filter.GetStats()

	c.logger.Info("deduplication complete",
		"raw_count", stats.TotalProcessed,
		"duplicates", stats.Duplicates,
		"unique", stats.Unique,
	)

	records := make([]mapped, 0, len(unique))
	for _, e := range unique {
		records = append(records, c.mapEvent(e))
	}

	result.Fetched = len(records)
	if err := storeRecords(ctx, c.repo, c.logger, &result, records); err != nil {
		return result, fmt.Errorf("serpapi: %w", err)
	}
	return result, nil
}

func (c *SerpAPIConnector) fetchQuery(ctx context.Context, q string) ([]serpEvent, error) {
	params := url.Values{}
	params.Set("engine", "google_events")
	params.Set("q", q)
	params.Set("location", c.cfg.Location)
	params.Set("htichips", c.cfg.Chips)
	params.Set("api_key", c.cfg.APIKey)

	resp, err := c.fetcher.Get(ctx, c.Name(), c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(c.Name(), resp)
	}

	var payload serpResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &SourceError{Source: c.Name(), Message: "invalid response body", Err: err}
	}
	if payload.Error != "" {
		return nil, &SourceError{Source: c.Name(), Message: "api error: " + payload.Error}
	}
	return payload.EventsResults, nil
}

func (c *SerpAPIConnector) mapEvent(e serpEvent) mapped {
	title := strings.TrimSpace(normalize.DecodeEntities(e.Title))
	if title == "" || strings.TrimSpace(e.Link) == "" {
		return skip("missing required field")
	}

	location := strings.Join(nonEmpty(e.Address), ", ")

	input := models.EventInput{
		Title:       title,
		Description: normalize.Description(e.Description),
		StartDate:   c.dates.Parse(e.Date.When, e.Date.StartDate),
		Location:    normalize.StringPtr(location),
		IsOnline:    normalize.IsOnlineLocation(location),
		URL:         strings.TrimSpace(e.Link),
		Source:      models.SourceSerpAPI,
		SourceID:    strings.TrimSpace(e.Link),
		Category:    normalize.Categorize(title, e.Description),
		ImageURL:    normalize.StringPtr(e.Thumbnail),
		IsApproved:  true,
	}

	if len(e.TicketInfo) > 0 {
		if price := normalize.StringPtr(e.TicketInfo[0].Price); price != nil {
			isFree := freePricePattern.MatchString(*price)
			input.PriceLabel = price
			input.IsFree = &isFree
		}
	}
	if e.Venue != nil {
		input.OrganizerName = normalize.StringPtr(e.Venue.Name)
	}

	return keep(input)
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
