package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sdtechevents/eventhub/internal/models"
)

var baseTime = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	store.now = func() time.Time { return baseTime }
	return store
}

func newInput(sourceID, title string, start time.Time, category models.Category) models.EventInput {
	return models.EventInput{
		Title:      title,
		StartDate:  start,
		URL:        "https://example.com/" + sourceID,
		Source:     models.SourceSerpAPI,
		SourceID:   sourceID,
		Category:   category,
		IsApproved: true,
	}
}

func TestUpsertKeepsIdentityOnConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	input := newInput("a", "Go Night", baseTime.Add(24*time.Hour), models.CategoryDeveloperTools)
	input.Tags = []string{"go"}
	first, err := store.Upsert(ctx, input)
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	input.Title = "Go Night (moved)"
	desc := "Now at a bigger venue"
	input.Description = &desc
	second, err := store.Upsert(ctx, input)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("id changed on conflict: %s -> %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on conflict")
	}
	if second.Title != "Go Night (moved)" || second.Description == nil || *second.Description != desc {
		t.Errorf("mutable fields not overwritten: %+v", second.EventInput)
	}
	if len(second.Tags) != 1 || second.Tags[0] != "go" {
		t.Errorf("tags = %v", second.Tags)
	}

	got, err := store.GetByID(ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if got.Title != "Go Night (moved)" {
		t.Errorf("stored title = %q", got.Title)
	}
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	store := openTestStore(t)

	input := newInput("a", "", baseTime, models.CategoryDeveloperTools)
	if _, err := store.Upsert(context.Background(), input); !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestQueryUpcoming(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seed := []models.EventInput{
		newInput("past", "Past Meetup", baseTime.Add(-time.Hour), models.CategoryDeveloperTools),
		newInput("ai", "Applied AI Night", baseTime.Add(48*time.Hour), models.CategoryAIML),
		newInput("startup", "Founder Coffee", baseTime.Add(24*time.Hour), models.CategoryStartup),
		newInput("late", "Rust 100% Workshop", baseTime.Add(40*24*time.Hour), models.CategoryWorkshops),
	}
	hidden := newInput("hidden", "Hidden AI Event", baseTime.Add(72*time.Hour), models.CategoryAIML)
	hidden.IsApproved = false
	seed = append(seed, hidden)

	for _, in := range seed {
		if _, err := store.Upsert(ctx, in); err != nil {
			t.Fatalf("seed %s: %v", in.SourceID, err)
		}
	}

	until := baseTime.Add(30 * 24 * time.Hour)
	ai := models.CategoryAIML

	tests := []struct {
		name   string
		filter models.EventFilter
		want   []string
	}{
		{"upcoming ordered", models.EventFilter{From: baseTime}, []string{"startup", "ai", "late"}},
		{"until bound", models.EventFilter{From: baseTime, Until: &until}, []string{"startup", "ai"}},
		{"category", models.EventFilter{From: baseTime, Category: &ai}, []string{"ai"}},
		{"search ignores case", models.EventFilter{From: baseTime, Search: "applied ai"}, []string{"ai"}},
		{"search is literal", models.EventFilter{From: baseTime, Search: "100%"}, []string{"late"}},
		{"wildcard chars do not match", models.EventFilter{From: baseTime, Search: "_"}, nil},
		{"limit", models.EventFilter{From: baseTime, Limit: 1}, []string{"startup"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.QueryUpcoming(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryUpcoming: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.want))
			}
			for i, e := range events {
				if e.SourceID != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, e.SourceID, tt.want[i])
				}
			}
		})
	}

	count, err := store.CountUpcoming(ctx)
	if err != nil {
		t.Fatalf("CountUpcoming: %v", err)
	}
	if count != 3 {
		t.Errorf("CountUpcoming = %d, want 3", count)
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetByID(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil event, got %+v", got)
	}
}

func TestSyncRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, source := range []string{"eventbrite", "serpapi", "sdtechscene"} {
		run := models.SyncRun{
			ID:        uuid.NewString(),
			Source:    source,
			Fetched:   i,
			StartedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}
		if source == "eventbrite" {
			run.Error = "eventbrite: EVENTBRITE_API_KEY is not configured"
		}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record %s: %v", source, err)
		}
	}

	if err := store.Record(ctx, models.SyncRun{Source: "serpapi"}); err == nil {
		t.Error("expected error for run without id")
	}

	runs, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Source != "sdtechscene" || runs[1].Source != "serpapi" {
		t.Errorf("unexpected order: %s, %s", runs[0].Source, runs[1].Source)
	}
	if !runs[0].Succeeded() {
		t.Errorf("expected sdtechscene run to succeed")
	}
}
