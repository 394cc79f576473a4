package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/models"
)

const entityColumns = `id, name, entity_type, zone, status, state, version, last_active, created_at, updated_at`

// EntityRepository handles entity data access.
type EntityRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(db *sql.DB, dialect database.Dialect) *EntityRepository {
	return &EntityRepository{db: db, dialect: dialect}
}

// EntityList is a page of entities.
type EntityList struct {
	Entities []*models.Entity
	Total    int
	Page     int
	PageSize int
}

// Create inserts a new entity at version 1.
func (r *EntityRepository) Create(ctx context.Context, tx *sql.Tx, e *models.Entity) error {
	if e.Status == "" {
		e.Status = models.EntityStatusActive
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	state, err := e.MarshalState()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	query := r.dialect.Rebind(`
		INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.conn(tx).ExecContext(ctx, query,
		e.ID,
		e.Name,
		string(e.Type),
		string(e.Zone),
		string(e.Status),
		string(state),
		e.Version,
		nullableTime(e.LastActive),
		e.CreatedAt.Format(timeLayout),
		e.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}

	return nil
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := r.dialect.Rebind(`SELECT ` + entityColumns + ` FROM entities WHERE id = ?`)

	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, err
}

// UpdateState writes the entity's state, status and activity time if the
// stored version still equals expectedVersion. On success the version is
// incremented in both the row and e.
func (r *EntityRepository) UpdateState(ctx context.Context, e *models.Entity, expectedVersion int64) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	state, err := e.MarshalState()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := r.dialect.Rebind(`
		UPDATE entities SET
			state = ?, status = ?, version = version + 1, last_active = ?, updated_at = ?
		WHERE id = ? AND version = ?`)

	result, err := r.db.ExecContext(ctx, query,
		string(state),
		string(e.Status),
		nullableTime(e.LastActive),
		now.Format(timeLayout),
		e.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating entity %s: %w", e.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of %s: %w", e.ID, err)
	}
	if rows == 0 {
		exists, err := r.exists(ctx, e.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrEntityNotFound, e.ID)
		}
		return fmt.Errorf("%w: %s at version %d", ErrVersionConflict, e.ID, expectedVersion)
	}

	e.Version = expectedVersion + 1
	e.UpdatedAt = now
	return nil
}

func (r *EntityRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM entities WHERE id = ?`), id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking entity %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *EntityRepository) where(filter models.EntityFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Zone != "" {
		conditions = append(conditions, "zone = ?")
		args = append(args, string(filter.Zone))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Find returns every entity matching the filter.
func (r *EntityRepository) Find(ctx context.Context, filter models.EntityFilter) ([]*models.Entity, error) {
	whereClause, args := r.where(filter)
	query := r.dialect.Rebind(fmt.Sprintf(`
		SELECT %s FROM entities %s
		ORDER BY entity_type, zone, name`, entityColumns, whereClause))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	return out, nil
}

// List retrieves entities with filtering and pagination.
func (r *EntityRepository) List(ctx context.Context, filter models.EntityFilter, page models.Pagination) (*EntityList, error) {
	whereClause, args := r.where(filter)

	var total int
	countQuery := r.dialect.Rebind("SELECT COUNT(*) FROM entities " + whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting entities: %w", err)
	}

	query := r.dialect.Rebind(fmt.Sprintf(`
		SELECT %s FROM entities %s
		ORDER BY entity_type, zone, name
		LIMIT ? OFFSET ?`, entityColumns, whereClause))

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	list := &EntityList{Total: total, Page: page.Page, PageSize: page.Limit()}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		list.Entities = append(list.Entities, e)
	}

	return list, rows.Err()
}

// CountByType returns entity counts per type.
func (r *EntityRepository) CountByType(ctx context.Context) (map[models.EntityType]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("counting by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EntityType]int)
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[models.EntityType(typ)] = count
	}

	return counts, rows.Err()
}

func scanEntity(row scanner) (*models.Entity, error) {
	var e models.Entity
	var state, createdStr, updatedStr string
	var lastActive sql.NullString

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Type,
		&e.Zone,
		&e.Status,
		&state,
		&e.Version,
		&lastActive,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	if err := e.UnmarshalState([]byte(state)); err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.ID, err)
	}

	e.CreatedAt = parseTime(createdStr)
	e.UpdatedAt = parseTime(updatedStr)
	if lastActive.Valid {
		e.LastActive = parseTime(lastActive.String)
	}

	return &e, nil
}
