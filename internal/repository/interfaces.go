package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// TariffRuleRepository manages tariff rule persistence. List returns rules in
// insertion order; the segmenter depends on that ordering.
type TariffRuleRepository interface {
	Create(ctx context.Context, rule *domain.TariffRule) error
	Get(ctx context.Context, id uuid.UUID) (*domain.TariffRule, error)
	Update(ctx context.Context, rule *domain.TariffRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.TariffRule, error)
}

// CallDetailRepository stores validated start/end detail records.
type CallDetailRepository interface {
	Create(ctx context.Context, detail *domain.CallDetail) error
	Get(ctx context.Context, id uuid.UUID) (*domain.CallDetail, error)
	GetByCallAndKind(ctx context.Context, callID int64, kind domain.DetailKind) (*domain.CallDetail, error)
	Update(ctx context.Context, detail *domain.CallDetail) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit int) ([]domain.CallDetail, error)
}

// CallRepository stores the aggregated call record keyed by the switch call
// id, with its detail references and last computed price.
type CallRepository interface {
	Get(ctx context.Context, callID int64) (*domain.Call, error)
	Create(ctx context.Context, call *domain.Call) error
	Update(ctx context.Context, call *domain.Call) error
	Delete(ctx context.Context, callID int64) error
	List(ctx context.Context, limit int) ([]domain.Call, error)
	// ListBilled returns completed calls originated by source whose end
	// timestamp falls in [from, to), ordered by end timestamp.
	ListBilled(ctx context.Context, source string, from, to time.Time) ([]BilledCall, error)
}

// BilledCall is one line of a subscriber bill.
type BilledCall struct {
	CallID      int64
	Destination string
	StartedAt   time.Time
	EndedAt     time.Time
	Price       domain.Cents
}

// DetailArchive keeps an append-only log of every accepted detail event for
// audit, independent of the mutable call state.
type DetailArchive interface {
	Append(ctx context.Context, detail domain.CallDetail, action string) error
	ListByCall(ctx context.Context, callID int64) ([]ArchivedDetail, error)
}

// ArchivedDetail is one archived detail event.
type ArchivedDetail struct {
	DetailID    uuid.UUID
	CallID      int64
	Kind        domain.DetailKind
	Action      string
	Timestamp   time.Time
	Source      string
	Destination string
	RecordedAt  time.Time
}
