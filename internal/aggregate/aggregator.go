package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
)

// Pricer computes the charge for a completed call interval.
type Pricer interface {
	Price(ctx context.Context, start, end time.Time) (domain.Cents, error)
}

// Locker serializes mutations per call id.
type Locker interface {
	Acquire(ctx context.Context, callID int64) (func(), error)
}

// Aggregator reconciles start/end detail events into a single call record.
// The persistence layer calls OnDetailSaved / OnDetailDeleted after the
// triggering write is durable; the aggregator assumes temporally consistent
// inputs (pairing order is validated at the boundary).
type Aggregator struct {
	calls  repository.CallRepository
	pricer Pricer
	locks  Locker
}

// New constructs an aggregator.
func New(calls repository.CallRepository, pricer Pricer, locks Locker) *Aggregator {
	return &Aggregator{calls: calls, pricer: pricer, locks: locks}
}

// OnDetailSaved folds a saved detail event into its call, creating the call
// on the first event and overwriting the matching reference otherwise. The
// price is recomputed on every change: zero while the pair is incomplete.
// Returns the resulting call state.
func (a *Aggregator) OnDetailSaved(ctx context.Context, detail *domain.CallDetail) (*domain.Call, error) {
	release, err := a.locks.Acquire(ctx, detail.CallID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: lock call %d: %w", detail.CallID, err)
	}
	defer release()

	call, err := a.calls.Get(ctx, detail.CallID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		call = &domain.Call{CallID: detail.CallID}
		setReference(call, detail)
		if err := a.reprice(ctx, call); err != nil {
			return nil, err
		}
		if err := a.calls.Create(ctx, call); err != nil {
			return nil, fmt.Errorf("aggregate: create call %d: %w", detail.CallID, err)
		}
		return call, nil
	case err != nil:
		return nil, fmt.Errorf("aggregate: load call %d: %w", detail.CallID, err)
	}

	setReference(call, detail)
	if err := a.reprice(ctx, call); err != nil {
		return nil, err
	}
	if err := a.calls.Update(ctx, call); err != nil {
		return nil, fmt.Errorf("aggregate: update call %d: %w", detail.CallID, err)
	}
	return call, nil
}

// OnDetailDeleted clears the retracted event's reference. When the other
// reference is also absent the call record is removed entirely; otherwise it
// survives with price reset to zero. Returns the surviving call, or nil when
// the call was removed or never existed.
func (a *Aggregator) OnDetailDeleted(ctx context.Context, detail *domain.CallDetail) (*domain.Call, error) {
	release, err := a.locks.Acquire(ctx, detail.CallID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: lock call %d: %w", detail.CallID, err)
	}
	defer release()

	call, err := a.calls.Get(ctx, detail.CallID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate: load call %d: %w", detail.CallID, err)
	}

	clearReference(call, detail)

	if call.Empty() {
		if err := a.calls.Delete(ctx, call.CallID); err != nil {
			return nil, fmt.Errorf("aggregate: delete call %d: %w", detail.CallID, err)
		}
		return nil, nil
	}

	if err := a.reprice(ctx, call); err != nil {
		return nil, err
	}
	if err := a.calls.Update(ctx, call); err != nil {
		return nil, fmt.Errorf("aggregate: update call %d: %w", detail.CallID, err)
	}
	return call, nil
}

// reprice recomputes the stored price from the current references. An
// incomplete pair prices at zero rather than raising an error: it is a
// valid intermediate state.
func (a *Aggregator) reprice(ctx context.Context, call *domain.Call) error {
	if !call.Complete() {
		call.Price = 0
		return nil
	}

	price, err := a.pricer.Price(ctx, call.Start.Timestamp, call.End.Timestamp)
	if err != nil {
		return fmt.Errorf("aggregate: price call %d: %w", call.CallID, err)
	}
	call.Price = price
	return nil
}

func setReference(call *domain.Call, detail *domain.CallDetail) {
	if detail.Kind == domain.DetailKindStart {
		call.Start = detail
		return
	}
	call.End = detail
}

func clearReference(call *domain.Call, detail *domain.CallDetail) {
	if detail.Kind == domain.DetailKindStart {
		if call.Start != nil && call.Start.ID == detail.ID {
			call.Start = nil
		}
		return
	}
	if call.End != nil && call.End.ID == detail.ID {
		call.End = nil
	}
}
