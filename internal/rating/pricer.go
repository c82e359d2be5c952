package rating

import (
	"context"
	"time"

	"github.com/acme/call-billing/internal/domain"
)

// Price computes the total charge for a call interval: the sum of every
// segment's call charge plus a single standing charge taken from the first
// segment. The standing charge is a flat per-call fee, charged once no
// matter how many bands the call crosses. An unpriceable interval (empty
// rule table) charges zero.
func (e *Engine) Price(ctx context.Context, start, end time.Time) (domain.Cents, error) {
	segments, err := e.Segments(ctx, start, end)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, nil
	}

	total := segments[0].StandingCharge
	for _, segment := range segments {
		total += segment.CallCharge
	}
	return total, nil
}
