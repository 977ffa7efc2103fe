package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sdtechevents/eventhub/internal/models"
)

const eventColumns = `id, title, description, start_date, end_date, location, is_online,
	url, source, source_id, category, is_free, price_label, organizer_name,
	organizer_url, image_url, tags, is_approved, created_at, updated_at`

const upsertEventQuery = `
	INSERT INTO events (
		id, title, description, start_date, end_date, location, is_online,
		url, source, source_id, category, is_free, price_label, organizer_name,
		organizer_url, image_url, tags, is_approved, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
	ON CONFLICT (source, source_id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		location = EXCLUDED.location,
		is_online = EXCLUDED.is_online,
		url = EXCLUDED.url,
		category = EXCLUDED.category,
		is_free = EXCLUDED.is_free,
		price_label = EXCLUDED.price_label,
		organizer_name = EXCLUDED.organizer_name,
		organizer_url = EXCLUDED.organizer_url,
		image_url = EXCLUDED.image_url,
		tags = EXCLUDED.tags,
		is_approved = EXCLUDED.is_approved,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
`

// PostgresEventRepository implements ingestion.EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db, now: time.Now}
}

// Upsert inserts the event or, on a (source, source_id) conflict, overwrites
// its mutable fields. The stored id and created_at are returned unchanged.
func (r *PostgresEventRepository) Upsert(ctx context.Context, input models.EventInput) (*models.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	event := models.Event{EventInput: input}
	event.Tags = tags

	err := r.db.QueryRowContext(ctx, upsertEventQuery,
		uuid.New().String(),
		input.Title,
		input.Description,
		input.StartDate.UTC(),
		utcPtr(input.EndDate),
		input.Location,
		input.IsOnline,
		input.URL,
		string(input.Source),
		input.SourceID,
		string(input.Category),
		input.IsFree,
		input.PriceLabel,
		input.OrganizerName,
		input.OrganizerURL,
		input.ImageURL,
		pq.Array(tags),
		input.IsApproved,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert event %s/%s: %w", input.Source, input.SourceID, err)
	}

	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return &event, nil
}

// QueryUpcoming returns approved events matching filter ordered by start date.
func (r *PostgresEventRepository) QueryUpcoming(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	query, args := buildUpcomingQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// CountUpcoming counts approved events starting now or later.
func (r *PostgresEventRepository) CountUpcoming(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE is_approved = TRUE AND start_date >= $1",
		r.now().UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// GetByID retrieves an event by its ID. It returns nil, nil when no event
// has that ID, including when id is not a UUID.
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// buildUpcomingQuery constructs the filtered listing query.
func buildUpcomingQuery(f models.EventFilter) (string, []any) {
	args := []any{f.From.UTC()}
	argIdx := 2
	conditions := []string{"is_approved = TRUE", "start_date >= $1"}

	if f.Until != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", argIdx))
		args = append(args, f.Until.UTC())
		argIdx++
	}

	if f.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, string(*f.Category))
		argIdx++
	}

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(f.Search)+"%")
		argIdx++
	}

	query := "SELECT " + eventColumns + " FROM events WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY start_date ASC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	return query, args
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (models.Event, error) {
	var (
		event                                 models.Event
		description, location, priceLabel     sql.NullString
		organizerName, organizerURL, imageURL sql.NullString
		endDate                               sql.NullTime
		isFree                                sql.NullBool
		source, category                      string
		tags                                  pq.StringArray
	)

	err := row.Scan(
		&event.ID,
		&event.Title,
		&description,
		&event.StartDate,
		&endDate,
		&location,
		&event.IsOnline,
		&event.URL,
		&source,
		&event.SourceID,
		&category,
		&isFree,
		&priceLabel,
		&organizerName,
		&organizerURL,
		&imageURL,
		&tags,
		&event.IsApproved,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, err
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Source = models.Source(source)
	event.Category = models.Category(category)
	event.Description = nullString(description)
	event.Location = nullString(location)
	event.PriceLabel = nullString(priceLabel)
	event.OrganizerName = nullString(organizerName)
	event.OrganizerURL = nullString(organizerURL)
	event.ImageURL = nullString(imageURL)
	event.Tags = []string(tags)
	event.StartDate = event.StartDate.UTC()
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()

	if endDate.Valid {
		end := endDate.Time.UTC()
		event.EndDate = &end
	}
	if isFree.Valid {
		free := isFree.Bool
		event.IsFree = &free
	}

	return event, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
