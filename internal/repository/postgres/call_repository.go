package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
)

// CallRepository implements repository.CallRepository using PostgreSQL. The
// calls table holds the two detail references and the last computed price;
// detail rows are joined in on read so callers get fully populated records.
type CallRepository struct {
	db *sqlx.DB
}

// NewCallRepository constructs a new repository.
func NewCallRepository(db *sqlx.DB) *CallRepository {
	return &CallRepository{db: db}
}

const callSelect = `SELECT
	c.call_id, c.price_cents,
	sd.id AS start_id, sd.occurred_at AS start_occurred_at, sd.source AS start_source, sd.destination AS start_destination,
	ed.id AS end_id, ed.occurred_at AS end_occurred_at
  FROM calls c
  LEFT JOIN call_details sd ON sd.id = c.start_detail_id
  LEFT JOIN call_details ed ON ed.id = c.end_detail_id`

// Get fetches a call with its detail references populated.
func (r *CallRepository) Get(ctx context.Context, callID int64) (*domain.Call, error) {
	var record callRecord
	if err := r.db.QueryRowxContext(ctx, callSelect+` WHERE c.call_id = $1`, callID).StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call repo: get: %w", err)
	}

	call := record.toDomain()
	return &call, nil
}

// Create inserts a new call record.
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	q := `INSERT INTO calls (call_id, start_detail_id, end_detail_id, price_cents, updated_at)
	 VALUES (:call_id, :start_detail_id, :end_detail_id, :price_cents, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, q, callParams(call)); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("call repo: insert: %w", err)
	}
	return nil
}

// Update replaces the detail references and price of a call.
func (r *CallRepository) Update(ctx context.Context, call *domain.Call) error {
	q := `UPDATE calls SET
		start_detail_id = :start_detail_id,
		end_detail_id = :end_detail_id,
		price_cents = :price_cents,
		updated_at = :updated_at
	 WHERE call_id = :call_id`

	res, err := r.db.NamedExecContext(ctx, q, callParams(call))
	if err != nil {
		return fmt.Errorf("call repo: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("call repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a call record.
func (r *CallRepository) Delete(ctx context.Context, callID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE call_id = $1`, callID)
	if err != nil {
		return fmt.Errorf("call repo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("call repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns recent calls.
func (r *CallRepository) List(ctx context.Context, limit int) ([]domain.Call, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryxContext(ctx, callSelect+` ORDER BY c.updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("call repo: list: %w", err)
	}
	defer rows.Close()

	var results []domain.Call
	for rows.Next() {
		var record callRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("call repo: scan: %w", err)
		}
		results = append(results, record.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call repo: rows err: %w", err)
	}
	return results, nil
}

// ListBilled returns completed calls for a subscriber whose end falls inside
// [from, to).
func (r *CallRepository) ListBilled(ctx context.Context, source string, from, to time.Time) ([]repository.BilledCall, error) {
	q := `SELECT c.call_id, sd.destination, sd.occurred_at AS started_at, ed.occurred_at AS ended_at, c.price_cents
	  FROM calls c
	  JOIN call_details sd ON sd.id = c.start_detail_id
	  JOIN call_details ed ON ed.id = c.end_detail_id
	 WHERE sd.source = $1 AND ed.occurred_at >= $2 AND ed.occurred_at < $3
	 ORDER BY ed.occurred_at ASC`

	rows, err := r.db.QueryxContext(ctx, q, source, from, to)
	if err != nil {
		return nil, fmt.Errorf("call repo: list billed: %w", err)
	}
	defer rows.Close()

	var results []repository.BilledCall
	for rows.Next() {
		var record billedCallRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("call repo: scan billed: %w", err)
		}
		results = append(results, repository.BilledCall{
			CallID:      record.CallID,
			Destination: record.Destination.String,
			StartedAt:   record.StartedAt.UTC(),
			EndedAt:     record.EndedAt.UTC(),
			Price:       domain.Cents(record.PriceCents),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call repo: billed rows err: %w", err)
	}
	return results, nil
}

func callParams(call *domain.Call) map[string]any {
	params := map[string]any{
		"call_id":         call.CallID,
		"start_detail_id": nil,
		"end_detail_id":   nil,
		"price_cents":     int64(call.Price),
		"updated_at":      time.Now().UTC(),
	}
	if call.Start != nil {
		params["start_detail_id"] = call.Start.ID
	}
	if call.End != nil {
		params["end_detail_id"] = call.End.ID
	}
	return params
}

type callRecord struct {
	CallID     int64 `db:"call_id"`
	PriceCents int64 `db:"price_cents"`

	StartID          *uuid.UUID     `db:"start_id"`
	StartOccurredAt  sql.NullTime   `db:"start_occurred_at"`
	StartSource      sql.NullString `db:"start_source"`
	StartDestination sql.NullString `db:"start_destination"`

	EndID         *uuid.UUID   `db:"end_id"`
	EndOccurredAt sql.NullTime `db:"end_occurred_at"`
}

func (r callRecord) toDomain() domain.Call {
	call := domain.Call{
		CallID: r.CallID,
		Price:  domain.Cents(r.PriceCents),
	}

	if r.StartID != nil {
		call.Start = &domain.CallDetail{
			ID:          *r.StartID,
			Kind:        domain.DetailKindStart,
			Timestamp:   r.StartOccurredAt.Time.UTC(),
			CallID:      r.CallID,
			Source:      r.StartSource.String,
			Destination: r.StartDestination.String,
		}
	}
	if r.EndID != nil {
		call.End = &domain.CallDetail{
			ID:        *r.EndID,
			Kind:      domain.DetailKindEnd,
			Timestamp: r.EndOccurredAt.Time.UTC(),
			CallID:    r.CallID,
		}
	}
	return call
}

type billedCallRecord struct {
	CallID      int64          `db:"call_id"`
	Destination sql.NullString `db:"destination"`
	StartedAt   time.Time      `db:"started_at"`
	EndedAt     time.Time      `db:"ended_at"`
	PriceCents  int64          `db:"price_cents"`
}
