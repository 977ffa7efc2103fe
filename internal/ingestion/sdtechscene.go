package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/models"
	"github.com/sdtechevents/eventhub/internal/normalize"
)

// SDTechSceneConnector scrapes the sdtechscene.org event calendar, reading the
// schema.org JSON-LD each listing page embeds.
type SDTechSceneConnector struct {
	cfg     config.SDTechSceneConfig
	fetcher *HTTPFetcher
	repo    EventRepository
	logger  *slog.Logger
}

// NewSDTechSceneConnector creates a new scraper connector.
func NewSDTechSceneConnector(cfg config.SDTechSceneConfig, fetcher *HTTPFetcher, repo EventRepository, logger *slog.Logger) *SDTechSceneConnector {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	return &SDTechSceneConnector{
		cfg:     cfg,
		fetcher: fetcher,
		repo:    repo,
		logger:  logger.With("source", string(models.SourceSDTechScene)),
	}
}

func (c *SDTechSceneConnector) Name() string {
	return string(models.SourceSDTechScene)
}

// Fetch walks listing pages until a 404, a page without events, or MaxPages.
func (c *SDTechSceneConnector) Fetch(ctx context.Context) (FetchResult, error) {
	result := FetchResult{Source: c.Name()}

	var all []JSONLDEvent
	for page := 1; page <= c.cfg.MaxPages; page++ {
		events, more, err := c.fetchPage(ctx, page)
		if err != nil {
			return result, err
		}
		if !more || len(events) == 0 {
			c.logger.Debug("pagination stopped", "page", page)
			break
		}
		c.logger.Info("scraped listing page", "page", page, "count", len(events))
		all = append(all, events...)
	}

	records := make([]mapped, 0, len(all))
	for _, e := range all {
		records = append(records, mapJSONLDEvent(e))
	}

	result.Fetched = len(records)
	if err := storeRecords(ctx, c.repo, c.logger, &result, records); err != nil {
		return result, fmt.Errorf("sdtechscene: %w", err)
	}
	return result, nil
}

// fetchPage returns more=false when the page does not exist.
func (c *SDTechSceneConnector) fetchPage(ctx context.Context, page int) ([]JSONLDEvent, bool, error) {
	pageURL := c.cfg.BaseURL
	if page > 1 {
		sep := "?"
		if strings.Contains(pageURL, "?") {
			sep = "&"
		}
		pageURL = fmt.Sprintf("%s%spaged=%d", pageURL, sep, page)
	}

	resp, err := c.fetcher.Get(ctx, c.Name(), pageURL, map[string]string{
		"User-Agent": c.cfg.UserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if !resp.OK() {
		srcErr := statusError(c.Name(), resp)
		srcErr.Message = fmt.Sprintf("page %d: %s", page, srcErr.Message)
		return nil, false, srcErr
	}

	return ExtractJSONLDEvents(string(resp.Body)), true, nil
}

func mapJSONLDEvent(e JSONLDEvent) mapped {
	title := strings.TrimSpace(normalize.DecodeEntities(e.Name))
	link := strings.TrimSpace(e.URL)
	if title == "" || link == "" || strings.TrimSpace(e.StartDate) == "" {
		return skip("missing required field")
	}
	if strings.Contains(e.EventStatus, "Cancelled") {
		return skip("cancelled")
	}

	start, ok := normalize.ParseTimestamp(e.StartDate)
	if !ok {
		return skip("unparseable start date")
	}

	var parts []string
	for _, p := range e.locationParts() {
		if p = strings.TrimSpace(normalize.DecodeEntities(p)); p != "" {
			parts = append(parts, p)
		}
	}
	location := strings.Join(parts, ", ")

	description := normalize.StripHTML(e.Description)

	input := models.EventInput{
		Title:       title,
		Description: normalize.Description(e.Description),
		StartDate:   start,
		Location:    normalize.StringPtr(location),
		IsOnline:    strings.Contains(e.EventAttendanceMode, "OnlineEvent") || normalize.IsOnlineLocation(location),
		URL:         link,
		Source:      models.SourceSDTechScene,
		SourceID:    link,
		Category:    normalize.Categorize(title, description),
		ImageURL:    normalize.StringPtr(e.imageURL()),
		IsApproved:  true,
	}

	if end, ok := normalize.ParseTimestamp(e.EndDate); ok {
		input.EndDate = &end
	}

	switch price := e.price(); {
	case price == "":
	case price == "0" || strings.EqualFold(price, "free"):
		isFree := true
		input.IsFree = &isFree
		input.PriceLabel = normalize.StringPtr("Free")
	default:
		isFree := false
		input.IsFree = &isFree
		if !strings.HasPrefix(price, "$") {
			price = "$" + price
		}
		input.PriceLabel = &price
	}

	name, orgURL := e.organizer()
	input.OrganizerName = normalize.StringPtr(normalize.DecodeEntities(name))
	input.OrganizerURL = normalize.StringPtr(orgURL)

	return keep(input)
}
