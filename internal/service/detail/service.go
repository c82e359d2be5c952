package detail

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/queue"
	"github.com/acme/call-billing/internal/repository"
	apperrors "github.com/acme/call-billing/pkg/errors"
	"github.com/acme/call-billing/pkg/logger"
)

// CallAggregator folds saved/deleted detail events into call records.
type CallAggregator interface {
	OnDetailSaved(ctx context.Context, detail *domain.CallDetail) (*domain.Call, error)
	OnDetailDeleted(ctx context.Context, detail *domain.CallDetail) (*domain.Call, error)
}

// RatedPublisher announces completed, priced calls.
type RatedPublisher interface {
	PublishRatedCall(ctx context.Context, msg queue.RatedCallMessage) error
}

// Service is the validated boundary for detail events. It enforces the
// invariants the aggregator assumes: well-formed phone numbers, at most one
// record of each kind per call id, and start never after the paired end.
// After each durable write or delete it drives the aggregation, mirrors the
// event into the archive, and publishes a rated-call message when the pair
// became complete.
type Service struct {
	details repository.CallDetailRepository
	archive repository.DetailArchive
	agg     CallAggregator
	rated   RatedPublisher
	log     *logger.Logger
}

// NewService constructs a detail service.
func NewService(
	details repository.CallDetailRepository,
	archive repository.DetailArchive,
	agg CallAggregator,
	rated RatedPublisher,
	log *logger.Logger,
) *Service {
	return &Service{details: details, archive: archive, agg: agg, rated: rated, log: log}
}

// Input captures a detail record crossing the boundary.
type Input struct {
	ID          uuid.UUID
	Kind        domain.DetailKind
	Timestamp   time.Time
	CallID      int64
	Source      string
	Destination string
}

// Create validates and stores a new detail record, then aggregates it.
func (s *Service) Create(ctx context.Context, input Input) (*domain.CallDetail, error) {
	if err := s.validate(ctx, input, uuid.Nil); err != nil {
		return nil, err
	}

	if _, err := s.details.GetByCallAndKind(ctx, input.CallID, input.Kind); err == nil {
		return nil, fmt.Errorf("%w: call %d already has a %s record", apperrors.ErrConflict, input.CallID, input.Kind)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("detail service: check duplicate: %w", err)
	}

	detail := toDomain(input)
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}

	if err := s.details.Create(ctx, detail); err != nil {
		return nil, fmt.Errorf("detail service: persist detail: %w", err)
	}

	s.afterSave(ctx, detail)
	return detail, nil
}

// Update validates and replaces an existing detail record, then aggregates
// the corrected value.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (*domain.CallDetail, error) {
	existing, err := s.details.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Kind != existing.Kind || input.CallID != existing.CallID {
		return nil, fmt.Errorf("%w: kind and call id are immutable", apperrors.ErrValidation)
	}
	if err := s.validate(ctx, input, id); err != nil {
		return nil, err
	}

	detail := toDomain(input)
	detail.ID = id
	if err := s.details.Update(ctx, detail); err != nil {
		return nil, fmt.Errorf("detail service: update detail: %w", err)
	}

	s.afterSave(ctx, detail)
	return detail, nil
}

// Delete retracts a detail record and re-aggregates the call.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	detail, err := s.details.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.details.Delete(ctx, id); err != nil {
		return fmt.Errorf("detail service: delete detail: %w", err)
	}

	s.archiveEvent(ctx, *detail, "deleted")
	if _, err := s.agg.OnDetailDeleted(ctx, detail); err != nil {
		return fmt.Errorf("detail service: aggregate deletion: %w", err)
	}
	return nil
}

// Get retrieves a detail record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.CallDetail, error) {
	return s.details.Get(ctx, id)
}

// List returns recent detail records.
func (s *Service) List(ctx context.Context, limit int) ([]domain.CallDetail, error) {
	return s.details.List(ctx, limit)
}

// afterSave runs the post-write pipeline: archive, aggregate, announce.
func (s *Service) afterSave(ctx context.Context, detail *domain.CallDetail) {
	s.archiveEvent(ctx, *detail, "saved")

	call, err := s.agg.OnDetailSaved(ctx, detail)
	if err != nil {
		// The detail is durable; aggregation is retried on the next event
		// for this call. Surfacing here would roll nothing back.
		s.log.Error("detail service: aggregate", zap.Int64("call_id", detail.CallID), zap.Error(err))
		return
	}

	if call != nil && call.Complete() && s.rated != nil {
		msg := queue.RatedCallMessage{
			CallID:      call.CallID,
			Source:      call.Start.Source,
			Destination: call.Start.Destination,
			StartedAt:   call.Start.Timestamp,
			EndedAt:     call.End.Timestamp,
			Duration:    call.Duration(),
			PriceCents:  int64(call.Price),
			RatedAt:     time.Now().UTC(),
		}
		if err := s.rated.PublishRatedCall(ctx, msg); err != nil {
			s.log.Warn("detail service: publish rated call", zap.Int64("call_id", call.CallID), zap.Error(err))
		}
	}
}

func (s *Service) archiveEvent(ctx context.Context, detail domain.CallDetail, action string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Append(ctx, detail, action); err != nil {
		s.log.Warn("detail service: archive event", zap.Int64("call_id", detail.CallID), zap.Error(err))
	}
}

var phoneNumberPattern = regexp.MustCompile(`^[0-9]{1,11}$`)

// validate checks field-level constraints and the pairing-order invariant
// against whichever counterpart record already exists. selfID excludes the
// record being updated from the counterpart lookup result.
func (s *Service) validate(ctx context.Context, input Input, selfID uuid.UUID) error {
	if !input.Kind.Valid() {
		return fmt.Errorf("%w: unknown record kind %q", apperrors.ErrValidation, input.Kind)
	}
	if input.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", apperrors.ErrValidation)
	}
	if input.CallID <= 0 {
		return fmt.Errorf("%w: call id must be positive", apperrors.ErrValidation)
	}

	switch input.Kind {
	case domain.DetailKindStart:
		if !phoneNumberPattern.MatchString(input.Source) {
			return fmt.Errorf("%w: invalid source phone number", apperrors.ErrValidation)
		}
		if !phoneNumberPattern.MatchString(input.Destination) {
			return fmt.Errorf("%w: invalid destination phone number", apperrors.ErrValidation)
		}
	case domain.DetailKindEnd:
		if input.Source != "" || input.Destination != "" {
			return fmt.Errorf("%w: end records carry no phone numbers", apperrors.ErrValidation)
		}
	}

	counterpartKind := domain.DetailKindEnd
	if input.Kind == domain.DetailKindEnd {
		counterpartKind = domain.DetailKindStart
	}

	counterpart, err := s.details.GetByCallAndKind(ctx, input.CallID, counterpartKind)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("detail service: lookup counterpart: %w", err)
	}
	if counterpart.ID == selfID {
		return nil
	}

	if input.Kind == domain.DetailKindStart && input.Timestamp.After(counterpart.Timestamp) {
		return fmt.Errorf("%w: start timestamp is after the call end", apperrors.ErrValidation)
	}
	if input.Kind == domain.DetailKindEnd && input.Timestamp.Before(counterpart.Timestamp) {
		return fmt.Errorf("%w: end timestamp is before the call start", apperrors.ErrValidation)
	}
	return nil
}

func toDomain(input Input) *domain.CallDetail {
	return &domain.CallDetail{
		ID:          input.ID,
		Kind:        input.Kind,
		Timestamp:   input.Timestamp.UTC(),
		CallID:      input.CallID,
		Source:      input.Source,
		Destination: input.Destination,
	}
}
