package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

// Segment is a maximal sub-interval of a call lying entirely within one
// tariff band, with its metered charge. Minutes are truncated per segment,
// so a band boundary falling mid-minute drops the partial minute on both
// sides; that matches per-tariff metering and is not recovered elsewhere.
type Segment struct {
	RuleID         uuid.UUID
	Start          time.Time
	End            time.Time
	Minutes        int64
	CallCharge     domain.Cents
	StandingCharge domain.Cents
}

// Engine slices call intervals along the tariff band grid and prices them.
type Engine struct {
	rules RuleSource
}

// NewEngine builds a pricing engine over the given rule source.
func NewEngine(rules RuleSource) *Engine {
	return &Engine{rules: rules}
}

// Segments partitions [start, end) into contiguous, non-overlapping segments
// aligned to the expanded tariff bands. An empty rule table yields no
// segments; a rule table with no band covering start's clock time is a
// configuration error. end == start yields a single zero-minute segment.
func (e *Engine) Segments(ctx context.Context, start, end time.Time) ([]Segment, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: interval end %s before start %s", apperrors.ErrValidation, end, start)
	}

	rules, err := e.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("segmenter: load rules: %w", err)
	}

	bands := ExpandBands(rules)
	if len(bands) == 0 {
		return nil, nil
	}

	start = start.UTC()
	end = end.UTC()

	idx := locateBand(bands, domain.TimeOfDayFrom(start))
	if idx < 0 {
		return nil, fmt.Errorf("%w: no tariff band covers %s", apperrors.ErrConfiguration, domain.TimeOfDayFrom(start))
	}

	var segments []Segment
	sliceStart := start
	for {
		band := bands[idx]

		sliceEnd := sliceBoundary(sliceStart, band)
		if sliceEnd.After(end) {
			sliceEnd = end
		}
		// A boundary that fails to advance would loop forever; only the
		// final, clamped slice may be empty.
		if !sliceEnd.After(sliceStart) && !sliceEnd.Equal(end) {
			return nil, fmt.Errorf("%w: tariff band %s does not advance past %s", apperrors.ErrConfiguration, band.RuleID, sliceStart)
		}

		minutes := int64(sliceEnd.Sub(sliceStart)/time.Second) / 60
		segments = append(segments, Segment{
			RuleID:         band.RuleID,
			Start:          sliceStart,
			End:            sliceEnd,
			Minutes:        minutes,
			CallCharge:     band.MinuteCharge.MulMinutes(minutes),
			StandingCharge: band.StandingCharge,
		})

		if sliceEnd.Equal(end) {
			return segments, nil
		}

		sliceStart = sliceEnd
		idx = (idx + 1) % len(bands)
	}
}

// locateBand returns the index of the first band containing the clock time,
// or -1 when the table has a gap there.
func locateBand(bands []Band, t domain.TimeOfDay) int {
	for i, band := range bands {
		if band.contains(t) {
			return i
		}
	}
	return -1
}

// sliceBoundary is the absolute instant where the band ends relative to the
// slice start: the band's end time on the same calendar date, or the
// following midnight for bands running to end of day.
func sliceBoundary(at time.Time, band Band) time.Time {
	if band.runsToMidnight() {
		year, month, day := at.UTC().Date()
		return time.Date(year, month, day+1, 0, 0, 0, 0, time.UTC)
	}
	return band.End.On(at)
}
