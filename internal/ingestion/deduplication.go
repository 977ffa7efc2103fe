package ingestion

import (
	"strings"
)

// Deduplicator identifies keys that have already been seen in a batch.
type Deduplicator interface {
	// IsNew checks if a key has not been marked yet.
	IsNew(key string) bool

	// Mark records a key as seen.
	Mark(key string)
}

// LinkDeduplicator implements in-memory deduplication keyed by event link.
// It is scoped to one adapter run and is not safe for concurrent use.
type LinkDeduplicator struct {
	seen map[string]struct{}
}

// NewLinkDeduplicator creates an empty deduplicator.
func NewLinkDeduplicator() *LinkDeduplicator {
	return &LinkDeduplicator{seen: make(map[string]struct{})}
}

// IsNew checks if a link has been seen before.
func (d *LinkDeduplicator) IsNew(link string) bool {
	_, exists := d.seen[normalizeLink(link)]
	return !exists
}

// Mark records a link as seen.
func (d *LinkDeduplicator) Mark(link string) {
	d.seen[normalizeLink(link)] = struct{}{}
}

// Size returns the number of distinct links seen.
func (d *LinkDeduplicator) Size() int {
	return len(d.seen)
}

func normalizeLink(link string) string {
	return strings.TrimSpace(link)
}

// DeduplicationStats tracks deduplication metrics.
type DeduplicationStats struct {
	TotalProcessed int
	Duplicates     int
	Unique         int
}

// DeduplicationFilter wraps a deduplicator to track statistics.
type DeduplicationFilter[T any] struct {
	dedup Deduplicator
	key   func(T) string
	stats DeduplicationStats
}

// NewDeduplicationFilter creates a filter that keys items with key.
func NewDeduplicationFilter[T any](dedup Deduplicator, key func(T) string) *DeduplicationFilter[T] {
	return &DeduplicationFilter[T]{dedup: dedup, key: key}
}

// Filter removes already-seen items, keeping the first occurrence and input
// order. Items with an empty key pass through so mapping can reject them.
func (f *DeduplicationFilter[T]) Filter(items []T) []T {
	unique := make([]T, 0, len(items))

	for _, item := range items {
		f.stats.TotalProcessed++

		k := f.key(item)
		if k == "" {
			unique = append(unique, item)
			f.stats.Unique++
			continue
		}

		if f.dedup.IsNew(k) {
			f.dedup.Mark(k)
			unique = append(unique, item)
			f.stats.Unique++
		} else {
			f.stats.Duplicates++
		}
	}

	return unique
}

// GetStats returns the current deduplication statistics.
func (f *DeduplicationFilter[T]) GetStats() DeduplicationStats {
	return f.stats
}
