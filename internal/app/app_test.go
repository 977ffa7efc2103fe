package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sdtechevents/eventhub/internal/auth"
	"github.com/sdtechevents/eventhub/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scraperOnlyConfig(baseURL string) config.Config {
	sources := config.DefaultSources()
	sources.Eventbrite.Disabled = true
	sources.SerpAPI.Disabled = true
	sources.SDTechScene.BaseURL = baseURL + "/events/"

	return config.Config{
		Store:   config.StoreConfig{Driver: "memory"},
		HTTP:    config.HTTPConfig{Timeout: 5 * time.Second, MaxRetries: 0},
		Sources: sources,
	}
}

func TestBuildConnectorsHonorsDisabled(t *testing.T) {
	sources := config.DefaultSources()
	fetcher := NewFetcher(config.HTTPConfig{Timeout: time.Second})

	all := BuildConnectors(sources, fetcher, nil, testLogger())
	var names []string
	for _, c := range all {
		names = append(names, c.Name())
	}
	if strings.Join(names, ",") != "eventbrite,serpapi,sdtechscene" {
		t.Errorf("connectors = %v", names)
	}

	sources.SerpAPI.Disabled = true
	if got := BuildConnectors(sources, fetcher, nil, testLogger()); len(got) != 2 {
		t.Errorf("expected 2 connectors with serpapi disabled, got %d", len(got))
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Config{Store: config.StoreConfig{Driver: "mongo"}}
	if _, err := New(context.Background(), cfg, testLogger(), Options{}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenDatabaseRequiresPostgres(t *testing.T) {
	if _, err := OpenDatabase(context.Background(), config.StoreConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error for non-postgres driver")
	}
}

func TestSyncThroughHTTP(t *testing.T) {
	start := time.Now().AddDate(0, 1, 0).Format(time.RFC3339)
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("paged") != "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><script type="application/ld+json">
			{"@type":"Event","name":"San Diego Go Meetup","startDate":%q,"url":"https://sdtechscene.org/event/go/"}
		</script></html>`, start)
	}))
	defer source.Close()

	a, err := New(context.Background(), scraperOnlyConfig(source.URL), testLogger(), Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer a.Close()

	handler := a.Handler(auth.Config{SyncSecret: "s3cret"})

	do := func(method, path string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	if rec := do(http.MethodPost, "/api/sync/sdtechscene", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated sync status = %d", rec.Code)
	}

	rec := do(http.MethodPost, "/api/sync/sdtechscene", map[string]string{auth.SyncSecretHeader: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d body = %s", rec.Code, rec.Body.String())
	}
	var syncResp struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &syncResp); err != nil {
		t.Fatal(err)
	}
	if !syncResp.Success || syncResp.Count != 1 {
		t.Errorf("unexpected sync response %s", rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/events?category=Developer+Tools", nil)
	var events struct {
		Count  int `json:"count"`
		Events []struct {
			Title    string `json:"title"`
			Category string `json:"category"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if events.Count != 1 || events.Events[0].Title != "San Diego Go Meetup" {
		t.Errorf("unexpected events %s", rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/sync/runs", map[string]string{auth.SyncSecretHeader: "s3cret"})
	if !strings.Contains(rec.Body.String(), `"source":"sdtechscene"`) {
		t.Errorf("run history missing sdtechscene: %s", rec.Body.String())
	}

	rec = do(http.MethodGet, "/metrics", nil)
	body := rec.Body.String()
	if !strings.Contains(body, `eventhub_sync_runs_total{source="sdtechscene",status="success"} 1`) {
		t.Errorf("metrics missing sync run counter:\n%s", body)
	}
	if !strings.Contains(body, `path="POST /api/sync/{source}"`) {
		t.Errorf("metrics missing route pattern label:\n%s", body)
	}
}
