package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
)

// CallDetailRepository implements repository.CallDetailRepository using
// PostgreSQL. A unique index on (call_id, kind) backs the at-most-one-of-each
// boundary invariant.
type CallDetailRepository struct {
	db *sqlx.DB
}

// NewCallDetailRepository constructs a new repository.
func NewCallDetailRepository(db *sqlx.DB) *CallDetailRepository {
	return &CallDetailRepository{db: db}
}

// Create inserts a new detail record.
func (r *CallDetailRepository) Create(ctx context.Context, detail *domain.CallDetail) error {
	q := `INSERT INTO call_details (id, kind, occurred_at, call_id, source, destination)
	 VALUES (:id, :kind, :occurred_at, :call_id, :source, :destination)`

	if _, err := r.db.NamedExecContext(ctx, q, callDetailParams(detail)); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("call detail repo: insert: %w", err)
	}
	return nil
}

// Get fetches a detail record by id.
func (r *CallDetailRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CallDetail, error) {
	q := `SELECT id, kind, occurred_at, call_id, source, destination
	  FROM call_details WHERE id = $1`

	var record callDetailRecord
	if err := r.db.QueryRowxContext(ctx, q, id).StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call detail repo: get: %w", err)
	}

	detail := record.toDomain()
	return &detail, nil
}

// GetByCallAndKind fetches the start or end record of a call, if present.
func (r *CallDetailRepository) GetByCallAndKind(ctx context.Context, callID int64, kind domain.DetailKind) (*domain.CallDetail, error) {
	q := `SELECT id, kind, occurred_at, call_id, source, destination
	  FROM call_details WHERE call_id = $1 AND kind = $2`

	var record callDetailRecord
	if err := r.db.QueryRowxContext(ctx, q, callID, string(kind)).StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call detail repo: get by call and kind: %w", err)
	}

	detail := record.toDomain()
	return &detail, nil
}

// Update modifies an existing detail record.
func (r *CallDetailRepository) Update(ctx context.Context, detail *domain.CallDetail) error {
	q := `UPDATE call_details SET
		kind = :kind,
		occurred_at = :occurred_at,
		call_id = :call_id,
		source = :source,
		destination = :destination
	 WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, q, callDetailParams(detail))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("call detail repo: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("call detail repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a detail record.
func (r *CallDetailRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM call_details WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("call detail repo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("call detail repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns recent detail records.
func (r *CallDetailRepository) List(ctx context.Context, limit int) ([]domain.CallDetail, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT id, kind, occurred_at, call_id, source, destination
	  FROM call_details ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("call detail repo: list: %w", err)
	}
	defer rows.Close()

	var results []domain.CallDetail
	for rows.Next() {
		var record callDetailRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("call detail repo: scan: %w", err)
		}
		results = append(results, record.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call detail repo: rows err: %w", err)
	}
	return results, nil
}

func callDetailParams(detail *domain.CallDetail) map[string]any {
	return map[string]any{
		"id":          detail.ID,
		"kind":        string(detail.Kind),
		"occurred_at": detail.Timestamp,
		"call_id":     detail.CallID,
		"source":      nullString(detail.Source),
		"destination": nullString(detail.Destination),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type callDetailRecord struct {
	ID          uuid.UUID      `db:"id"`
	Kind        string         `db:"kind"`
	OccurredAt  sql.NullTime   `db:"occurred_at"`
	CallID      int64          `db:"call_id"`
	Source      sql.NullString `db:"source"`
	Destination sql.NullString `db:"destination"`
}

func (r callDetailRecord) toDomain() domain.CallDetail {
	detail := domain.CallDetail{
		ID:          r.ID,
		Kind:        domain.DetailKind(r.Kind),
		CallID:      r.CallID,
		Source:      r.Source.String,
		Destination: r.Destination.String,
	}
	if r.OccurredAt.Valid {
		detail.Timestamp = r.OccurredAt.Time.UTC()
	}
	return detail
}
