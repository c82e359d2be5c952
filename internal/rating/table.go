package rating

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
)

// RuleSource yields the current tariff rule set in insertion order.
type RuleSource interface {
	List(ctx context.Context) ([]domain.TariffRule, error)
}

// Band is a tariff rule normalized to a same-day sub-band. End == 00:00:00
// means the band runs to midnight; Start == End denotes a full-day band.
type Band struct {
	RuleID         uuid.UUID
	Start          domain.TimeOfDay
	End            domain.TimeOfDay
	StandingCharge domain.Cents
	MinuteCharge   domain.Cents
}

// ExpandBands flattens rules into same-day bands. A non-wrapping rule maps to
// itself; a midnight-wrapping rule is split into a head band running to
// midnight and a tail band starting at midnight, appended head-first. Output
// keeps rule insertion order and is not sorted by time of day.
func ExpandBands(rules []domain.TariffRule) []Band {
	bands := make([]Band, 0, len(rules))
	for _, rule := range rules {
		if rule.Wraps() {
			bands = append(bands,
				Band{
					RuleID:         rule.ID,
					Start:          rule.StartTime,
					End:            domain.ClockTime(0, 0, 0),
					StandingCharge: rule.StandingCharge,
					MinuteCharge:   rule.MinuteCallCharge,
				},
				Band{
					RuleID:         rule.ID,
					Start:          domain.ClockTime(0, 0, 0),
					End:            rule.EndTime,
					StandingCharge: rule.StandingCharge,
					MinuteCharge:   rule.MinuteCallCharge,
				},
			)
			continue
		}

		bands = append(bands, Band{
			RuleID:         rule.ID,
			Start:          rule.StartTime,
			End:            rule.EndTime,
			StandingCharge: rule.StandingCharge,
			MinuteCharge:   rule.MinuteCallCharge,
		})
	}
	return bands
}

// contains reports whether the clock time falls inside the half-open band.
func (b Band) contains(t domain.TimeOfDay) bool {
	if b.Start == b.End {
		// Full-day band.
		return true
	}
	if b.End == 0 {
		// Runs to midnight.
		return t >= b.Start
	}
	return t >= b.Start && t < b.End
}

// runsToMidnight reports whether the band's slice boundary is the following
// midnight rather than a clock time on the same date.
func (b Band) runsToMidnight() bool {
	return b.End == 0 || b.Start == b.End
}
