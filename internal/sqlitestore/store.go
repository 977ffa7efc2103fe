// Package sqlitestore is a single-file event store for local development,
// selected with STORE_DRIVER=sqlite.
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sdtechevents/eventhub/internal/models"
)

type eventRow struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Description   *string
	StartDate     time.Time `gorm:"not null;index"`
	EndDate       *time.Time
	Location      *string
	IsOnline      bool
	URL           string `gorm:"not null"`
	Source        string `gorm:"not null;uniqueIndex:idx_events_natural_key"`
	SourceID      string `gorm:"not null;uniqueIndex:idx_events_natural_key"`
	Category      string `gorm:"not null;index"`
	IsFree        *bool
	PriceLabel    *string
	OrganizerName *string
	OrganizerURL  *string
	ImageURL      *string
	Tags          []string `gorm:"serializer:json"`
	IsApproved    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (eventRow) TableName() string { return "events" }

type syncRunRow struct {
	ID         string `gorm:"primaryKey"`
	Source     string `gorm:"not null;index"`
	Fetched    int
	Upserted   int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time `gorm:"not null;index"`
	DurationMs int
}

func (syncRunRow) TableName() string { return "sync_runs" }

// upsertColumns are overwritten when (source, source_id) already exists.
var upsertColumns = []string{
	"title", "description", "start_date", "end_date", "location", "is_online",
	"url", "category", "is_free", "price_label", "organizer_name",
	"organizer_url", "image_url", "tags", "is_approved", "updated_at",
}

// Store implements ingestion.EventRepository and ingestion.SyncRunRepository
// on SQLite through GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&eventRow{}, &syncRunRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts or updates by (source, source_id), keeping the stored id
// and created_at.
func (s *Store) Upsert(ctx context.Context, input models.EventInput) (*models.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	row := toRow(input)
	row.ID = uuid.NewString()

	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert event %s/%s: %w", input.Source, input.SourceID, err)
	}

	var stored eventRow
	if err := db.Where("source = ? AND source_id = ?", row.Source, row.SourceID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload event %s/%s: %w", input.Source, input.SourceID, err)
	}

	event := fromRow(stored)
	return &event, nil
}

// QueryUpcoming returns approved events matching filter ordered by start date.
func (s *Store) QueryUpcoming(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	q := s.db.WithContext(ctx).
		Where("is_approved = ? AND start_date >= ?", true, filter.From.UTC())

	if filter.Until != nil {
		q = q.Where("start_date <= ?", filter.Until.UTC())
	}
	if filter.Category != nil {
		q = q.Where("category = ?", string(*filter.Category))
	}
	if filter.Search != "" {
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []eventRow
	if err := q.Order("start_date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromRow(row))
	}
	return events, nil
}

// CountUpcoming counts approved events starting now or later.
func (s *Store) CountUpcoming(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&eventRow{}).
		Where("is_approved = ? AND start_date >= ?", true, s.now().UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int(count), nil
}

// GetByID retrieves an event by its ID, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	event := fromRow(row)
	return &event, nil
}

// Record stores one adapter run.
func (s *Store) Record(ctx context.Context, run models.SyncRun) error {
	if run.ID == "" {
		return fmt.Errorf("sync run id is required")
	}
	row := syncRunRow{
		ID:         run.ID,
		Source:     run.Source,
		Fetched:    run.Fetched,
		Upserted:   run.Upserted,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Error:      run.Error,
		StartedAt:  run.StartedAt.UTC(),
		DurationMs: run.DurationMs,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []syncRunRow
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}

	runs := make([]models.SyncRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, models.SyncRun{
			ID:         row.ID,
			Source:     row.Source,
			Fetched:    row.Fetched,
			Upserted:   row.Upserted,
			Skipped:    row.Skipped,
			Failed:     row.Failed,
			Error:      row.Error,
			StartedAt:  row.StartedAt.UTC(),
			DurationMs: row.DurationMs,
		})
	}
	return runs, nil
}

func toRow(in models.EventInput) eventRow {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var end *time.Time
	if in.EndDate != nil {
		e := in.EndDate.UTC()
		end = &e
	}

	return eventRow{
		Title:         in.Title,
		Description:   in.Description,
		StartDate:     in.StartDate.UTC(),
		EndDate:       end,
		Location:      in.Location,
		IsOnline:      in.IsOnline,
		URL:           in.URL,
		Source:        string(in.Source),
		SourceID:      in.SourceID,
		Category:      string(in.Category),
		IsFree:        in.IsFree,
		PriceLabel:    in.PriceLabel,
		OrganizerName: in.OrganizerName,
		OrganizerURL:  in.OrganizerURL,
		ImageURL:      in.ImageURL,
		Tags:          tags,
		IsApproved:    in.IsApproved,
	}
}

func fromRow(row eventRow) models.Event {
	var end *time.Time
	if row.EndDate != nil {
		e := row.EndDate.UTC()
		end = &e
	}

	return models.Event{
		ID: row.ID,
		EventInput: models.EventInput{
			Title:         row.Title,
			Description:   row.Description,
			StartDate:     row.StartDate.UTC(),
			EndDate:       end,
			Location:      row.Location,
			IsOnline:      row.IsOnline,
			URL:           row.URL,
			Source:        models.Source(row.Source),
			SourceID:      row.SourceID,
			Category:      models.Category(row.Category),
			IsFree:        row.IsFree,
			PriceLabel:    row.PriceLabel,
			OrganizerName: row.OrganizerName,
			OrganizerURL:  row.OrganizerURL,
			ImageURL:      row.ImageURL,
			Tags:          row.Tags,
			IsApproved:    row.IsApproved,
		},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
