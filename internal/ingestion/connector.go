package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Connector defines the interface that all source adapters must implement.
type Connector interface {
	// Name returns the unique identifier for this connector, e.g. "serpapi".
	Name() string

	// Fetch pulls current listings from the source, maps them to canonical
	// events and upserts each one. Per-record problems are counted in the
	// result; only run-level failures are returned as errors.
	Fetch(ctx context.Context) (FetchResult, error)
}

// FetchResult contains the outcome of a fetch operation.
// Upserted + Skipped + Failed == Fetched.
type FetchResult struct {
	Source      string        `json:"source"`
	Fetched     int           `json:"fetched"`
	Upserted    int           `json:"upserted"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	QueryErrors int           `json:"query_errors,omitempty"`
	Duration    time.Duration `json:"-"`
}

// ErrUnknownSource is returned by Pipeline.RunOne for an unregistered name.
var ErrUnknownSource = errors.New("unknown source")

// ConfigurationError reports a missing or placeholder credential. It fails
// only the adapter that needs the setting.
type ConfigurationError struct {
	Source  string
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Source, e.Setting)
}

// SourceError reports a non-success response or an API-level error payload.
type SourceError struct {
	Source     string
	StatusCode int
	Message    string
	Err        error
}

func (e *SourceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, msg)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// RecordOutcome classifies what happened to one source record.
type RecordOutcome int

const (
	RecordUpserted RecordOutcome = iota
	// RecordSkip: required field missing or event cancelled.
	RecordSkip
	// UpsertFailure: the store rejected a valid record.
	UpsertFailure
)

func (o RecordOutcome) String() string {
	switch o {
	case RecordUpserted:
		return "upserted"
	case RecordSkip:
		return "skipped"
	case UpsertFailure:
		return "failed"
	default:
		return "unknown"
	}
}

// add tallies one record outcome.
func (r *FetchResult) add(o RecordOutcome) {
	switch o {
	case RecordUpserted:
		r.Upserted++
	case RecordSkip:
		r.Skipped++
	case UpsertFailure:
		r.Failed++
	}
}
