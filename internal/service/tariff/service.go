package tariff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

// Invalidator drops a cached rule-table snapshot.
type Invalidator interface {
	Invalidate()
}

// Broadcaster tells other processes to drop their snapshots too.
type Broadcaster interface {
	BroadcastInvalidation(ctx context.Context) error
}

// Service orchestrates tariff rule maintenance. Every mutation invalidates
// the local rule cache and broadcasts the invalidation so pricing picks up
// the committed rule set before its next read.
type Service struct {
	repo      repository.TariffRuleRepository
	cache     Invalidator
	broadcast Broadcaster
}

// NewService constructs a tariff service.
func NewService(repo repository.TariffRuleRepository, cache Invalidator, broadcast Broadcaster) *Service {
	return &Service{repo: repo, cache: cache, broadcast: broadcast}
}

// RuleInput captures the mutable properties of a tariff rule.
type RuleInput struct {
	Name             string
	StartTime        domain.TimeOfDay
	EndTime          domain.TimeOfDay
	StandingCharge   domain.Cents
	MinuteCallCharge domain.Cents
}

// Create adds a tariff rule.
func (s *Service) Create(ctx context.Context, input RuleInput) (*domain.TariffRule, error) {
	if err := validateRuleInput(input); err != nil {
		return nil, err
	}

	rule := &domain.TariffRule{
		ID:               uuid.New(),
		Name:             input.Name,
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		StandingCharge:   input.StandingCharge,
		MinuteCallCharge: input.MinuteCallCharge,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("tariff service: create rule: %w", err)
	}

	s.invalidate(ctx)
	return rule, nil
}

// Get retrieves a rule by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.TariffRule, error) {
	return s.repo.Get(ctx, id)
}

// List returns all rules in insertion order.
func (s *Service) List(ctx context.Context) ([]domain.TariffRule, error) {
	return s.repo.List(ctx)
}

// Update modifies a rule.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input RuleInput) (*domain.TariffRule, error) {
	if err := validateRuleInput(input); err != nil {
		return nil, err
	}

	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Name = input.Name
	rule.StartTime = input.StartTime
	rule.EndTime = input.EndTime
	rule.StandingCharge = input.StandingCharge
	rule.MinuteCallCharge = input.MinuteCallCharge

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("tariff service: update rule: %w", err)
	}

	s.invalidate(ctx)
	return rule, nil
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate()
	}
	if s.broadcast != nil {
		// Best effort: a missed broadcast only extends the staleness window
		// until the peer's next invalidation or restart.
		_ = s.broadcast.BroadcastInvalidation(ctx)
	}
}

func validateRuleInput(input RuleInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: rule name is required", apperrors.ErrValidation)
	}
	if input.StartTime < 0 || input.StartTime >= 24*3600 {
		return fmt.Errorf("%w: start time out of range", apperrors.ErrValidation)
	}
	if input.EndTime < 0 || input.EndTime >= 24*3600 {
		return fmt.Errorf("%w: end time out of range", apperrors.ErrValidation)
	}
	if input.StandingCharge < 0 || input.MinuteCallCharge < 0 {
		return fmt.Errorf("%w: charges must not be negative", apperrors.ErrValidation)
	}
	return nil
}
