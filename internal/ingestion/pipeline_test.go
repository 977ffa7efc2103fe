package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sdtechevents/eventhub/internal/models"
)

type fakeConnector struct {
	name   string
	result FetchResult
	err    error
	panics bool
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Fetch(ctx context.Context) (FetchResult, error) {
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

type recordingObserver struct {
	mu   sync.Mutex
	runs []models.SyncRun
}

func (o *recordingObserver) ObserveRun(ctx context.Context, run models.SyncRun) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, run)
	return nil
}

func newTestPipeline(t *testing.T, observers []RunObserver, connectors ...Connector) *Pipeline {
	t.Helper()
	p, err := NewPipeline(connectors, testLogger(), DefaultPipelineConfig(), observers...)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	return p
}

func TestPipeline_RunAllIsolatesFailures(t *testing.T) {
	ok := &fakeConnector{name: "sdtechscene", result: FetchResult{Fetched: 4, Upserted: 3, Skipped: 1}}
	bad := &fakeConnector{name: "serpapi", err: &SourceError{Source: "serpapi", StatusCode: 500, Message: "upstream down"}}

	observer := &recordingObserver{}
	p := newTestPipeline(t, []RunObserver{observer}, ok, bad)

	results := p.RunAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if r := results["sdtechscene"]; r.Err != nil || r.Fetched != 4 || r.Upserted != 3 {
		t.Errorf("unexpected success entry %+v", r)
	}
	var srcErr *SourceError
	if r := results["serpapi"]; !errors.As(r.Err, &srcErr) {
		t.Errorf("expected SourceError entry, got %+v", r)
	}

	body, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal results: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if decoded["sdtechscene"]["fetched"] != float64(4) || decoded["sdtechscene"]["upserted"] != float64(3) {
		t.Errorf("unexpected success json %v", decoded["sdtechscene"])
	}
	if msg, _ := decoded["serpapi"]["error"].(string); !strings.Contains(msg, "upstream down") {
		t.Errorf("unexpected error json %v", decoded["serpapi"])
	}
	if _, has := decoded["serpapi"]["fetched"]; has {
		t.Error("error entries should not carry counts")
	}

	if len(observer.runs) != 2 {
		t.Fatalf("expected 2 observed runs, got %d", len(observer.runs))
	}
	for _, run := range observer.runs {
		if run.ID == "" || run.StartedAt.IsZero() {
			t.Errorf("run missing id or start: %+v", run)
		}
		if run.Source == "serpapi" && run.Succeeded() {
			t.Error("serpapi run should record its error")
		}
		if run.Source == "sdtechscene" && (!run.Succeeded() || run.Skipped != 1) {
			t.Errorf("unexpected sdtechscene run %+v", run)
		}
	}
}

func TestPipeline_RecoversPanics(t *testing.T) {
	p := newTestPipeline(t, nil,
		&fakeConnector{name: "eventbrite", panics: true},
		&fakeConnector{name: "sdtechscene", result: FetchResult{Fetched: 1, Upserted: 1}},
	)

	results := p.RunAll(context.Background())
	if r := results["eventbrite"]; r.Err == nil || !strings.Contains(r.Err.Error(), "panicked") {
		t.Errorf("expected recovered panic, got %+v", r)
	}
	if r := results["sdtechscene"]; r.Err != nil || r.Upserted != 1 {
		t.Errorf("sibling should succeed, got %+v", r)
	}
}

func TestPipeline_RunOne(t *testing.T) {
	cfgErr := &ConfigurationError{Source: "eventbrite", Setting: "EVENTBRITE_API_KEY"}
	p := newTestPipeline(t, nil,
		&fakeConnector{name: "eventbrite", err: cfgErr},
		&fakeConnector{name: "serpapi", result: FetchResult{Fetched: 5, Upserted: 5}},
	)

	result, err := p.RunOne(context.Background(), "serpapi")
	if err != nil || result.Upserted != 5 || result.Source != "serpapi" {
		t.Errorf("unexpected RunOne result %+v, %v", result, err)
	}

	if _, err := p.RunOne(context.Background(), "eventbrite"); !errors.Is(err, cfgErr) {
		t.Errorf("expected adapter error to surface directly, got %v", err)
	}

	if _, err := p.RunOne(context.Background(), "meetup"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestPipeline_Sources(t *testing.T) {
	p := newTestPipeline(t, nil,
		&fakeConnector{name: "serpapi"},
		&fakeConnector{name: "eventbrite"},
		&fakeConnector{name: "sdtechscene"},
	)

	if got := strings.Join(p.Sources(), ","); got != "eventbrite,sdtechscene,serpapi" {
		t.Errorf("unexpected sources %q", got)
	}
}

func TestNewPipeline_RejectsDuplicateNames(t *testing.T) {
	_, err := NewPipeline([]Connector{
		&fakeConnector{name: "serpapi"},
		&fakeConnector{name: "serpapi"},
	}, testLogger(), DefaultPipelineConfig())
	if err == nil {
		t.Fatal("expected duplicate connector error")
	}
}

func TestPipeline_ObserverErrorsDoNotFailRuns(t *testing.T) {
	failing := RunObserverFunc(func(ctx context.Context, run models.SyncRun) error {
		return errors.New("history table missing")
	})
	p := newTestPipeline(t, []RunObserver{failing}, &fakeConnector{name: "serpapi", result: FetchResult{Fetched: 1, Upserted: 1}})

	if _, err := p.RunOne(context.Background(), "serpapi"); err != nil {
		t.Fatalf("observer failure leaked into run: %v", err)
	}
}
