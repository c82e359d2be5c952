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

// TariffRuleRepository implements repository.TariffRuleRepository using
// PostgreSQL. Clock times are stored as seconds since midnight.
type TariffRuleRepository struct {
	db *sqlx.DB
}

// NewTariffRuleRepository constructs a new repository.
func NewTariffRuleRepository(db *sqlx.DB) *TariffRuleRepository {
	return &TariffRuleRepository{db: db}
}

// Create inserts a new tariff rule.
func (r *TariffRuleRepository) Create(ctx context.Context, rule *domain.TariffRule) error {
	q := `INSERT INTO tariff_rules (
		id, name, start_seconds, end_seconds, standing_charge_cents, minute_charge_cents, created_at
	) VALUES (
		:id, :name, :start_seconds, :end_seconds, :standing_charge_cents, :minute_charge_cents, :created_at
	)`

	if _, err := r.db.NamedExecContext(ctx, q, tariffRuleParams(rule)); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("tariff rule repo: insert: %w", err)
	}
	return nil
}

// Get fetches a rule by id.
func (r *TariffRuleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.TariffRule, error) {
	q := `SELECT id, name, start_seconds, end_seconds, standing_charge_cents, minute_charge_cents, created_at
	  FROM tariff_rules WHERE id = $1`

	var record tariffRuleRecord
	if err := r.db.QueryRowxContext(ctx, q, id).StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("tariff rule repo: get: %w", err)
	}

	rule := record.toDomain()
	return &rule, nil
}

// Update modifies an existing rule.
func (r *TariffRuleRepository) Update(ctx context.Context, rule *domain.TariffRule) error {
	q := `UPDATE tariff_rules SET
		name = :name,
		start_seconds = :start_seconds,
		end_seconds = :end_seconds,
		standing_charge_cents = :standing_charge_cents,
		minute_charge_cents = :minute_charge_cents
	 WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, q, tariffRuleParams(rule))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("tariff rule repo: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tariff rule repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a rule.
func (r *TariffRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tariff_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tariff rule repo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tariff rule repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns all rules in insertion order.
func (r *TariffRuleRepository) List(ctx context.Context) ([]domain.TariffRule, error) {
	q := `SELECT id, name, start_seconds, end_seconds, standing_charge_cents, minute_charge_cents, created_at
	  FROM tariff_rules ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("tariff rule repo: list: %w", err)
	}
	defer rows.Close()

	var results []domain.TariffRule
	for rows.Next() {
		var record tariffRuleRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("tariff rule repo: scan: %w", err)
		}
		results = append(results, record.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tariff rule repo: rows err: %w", err)
	}
	return results, nil
}

func tariffRuleParams(rule *domain.TariffRule) map[string]any {
	return map[string]any{
		"id":                    rule.ID,
		"name":                  rule.Name,
		"start_seconds":         int(rule.StartTime),
		"end_seconds":           int(rule.EndTime),
		"standing_charge_cents": int64(rule.StandingCharge),
		"minute_charge_cents":   int64(rule.MinuteCallCharge),
		"created_at":            rule.CreatedAt,
	}
}

type tariffRuleRecord struct {
	ID                  uuid.UUID    `db:"id"`
	Name                string       `db:"name"`
	StartSeconds        int          `db:"start_seconds"`
	EndSeconds          int          `db:"end_seconds"`
	StandingChargeCents int64        `db:"standing_charge_cents"`
	MinuteChargeCents   int64        `db:"minute_charge_cents"`
	CreatedAt           sql.NullTime `db:"created_at"`
}

func (r tariffRuleRecord) toDomain() domain.TariffRule {
	rule := domain.TariffRule{
		ID:               r.ID,
		Name:             r.Name,
		StartTime:        domain.TimeOfDay(r.StartSeconds),
		EndTime:          domain.TimeOfDay(r.EndSeconds),
		StandingCharge:   domain.Cents(r.StandingChargeCents),
		MinuteCallCharge: domain.Cents(r.MinuteChargeCents),
	}
	if r.CreatedAt.Valid {
		rule.CreatedAt = r.CreatedAt.Time.UTC()
	} else {
		rule.CreatedAt = time.Time{}
	}
	return rule
}
