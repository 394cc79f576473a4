package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
)

// ActivityRepository persists the activity broadcast log.
type ActivityRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sql.DB, dialect database.Dialect) *ActivityRepository {
	return &ActivityRepository{db: db, dialect: dialect}
}

// Insert appends a record to the log.
func (r *ActivityRepository) Insert(ctx context.Context, rec *models.ActivityRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := r.dialect.Rebind(`
		INSERT INTO activity_log (id, occurred_at, actor, event_type, entity_id, zone, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC().Format(timeLayout),
		rec.Actor,
		rec.Type,
		nullableString(rec.EntityID),
		nullableString(string(rec.Zone)),
		nullableString(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]*models.ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.dialect.Rebind(`
		SELECT id, occurred_at, actor, event_type, entity_id, zone, payload
		FROM activity_log
		ORDER BY occurred_at DESC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var out []*models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		var occurred string
		var entityID, zone, payload sql.NullString
		if err := rows.Scan(&rec.ID, &occurred, &rec.Actor, &rec.Type, &entityID, &zone, &payload); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		rec.Timestamp = parseTime(occurred)
		rec.EntityID = entityID.String
		rec.Zone = models.Zone(zone.String)
		rec.Payload = payload.String
		out = append(out, &rec)
	}

	return out, rows.Err()
}

// CountByType returns how often each event type was logged since a time.
func (r *ActivityRepository) CountByType(ctx context.Context, since time.Time) (map[string]int, error) {
	query := r.dialect.Rebind(`
		SELECT event_type, COUNT(*) FROM activity_log
		WHERE occurred_at >= ?
		GROUP BY event_type`)

	rows, err := r.db.QueryContext(ctx, query, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("counting activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scanning activity count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
