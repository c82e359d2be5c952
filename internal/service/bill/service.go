package bill

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

// Period is a closed calendar month a bill can be issued for.
type Period struct {
	Month time.Month
	Year  int
}

// String renders the period in MM/YYYY form.
func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", p.Month, p.Year)
}

// Bounds returns the half-open UTC interval [first instant of the month,
// first instant of the next month).
func (p Period) Bounds() (time.Time, time.Time) {
	from := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Line is one priced call on a bill. A call lands on the bill for the month
// its end timestamp falls in, regardless of when it started.
type Line struct {
	Destination string       `json:"destination"`
	StartDate   string       `json:"call_start_date"`
	StartTime   string       `json:"call_start_time"`
	Duration    string       `json:"duration"`
	Price       domain.Cents `json:"price_cents"`
}

// Bill is a subscriber's statement for one period.
type Bill struct {
	Subscriber string `json:"subscriber"`
	Period     string `json:"period"`
	Calls      []Line `json:"calls"`
}

// Service assembles subscriber bills from aggregated call records.
type Service struct {
	calls repository.CallRepository
	now   func() time.Time
}

// NewService constructs a bill service.
func NewService(calls repository.CallRepository) *Service {
	return &Service{calls: calls, now: time.Now}
}

var (
	periodPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{4})$`)
	subscriberPattern = regexp.MustCompile(`^[0-9]{1,11}$`)
)

// ParsePeriod parses an MM/YYYY reference. The empty string selects the
// most recent closed period, the month before the current one.
func (s *Service) ParsePeriod(raw string) (Period, error) {
	if raw == "" {
		now := s.now().UTC()
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return Period{Month: prev.Month(), Year: prev.Year()}, nil
	}

	m := periodPattern.FindStringSubmatch(raw)
	if m == nil {
		return Period{}, fmt.Errorf("%w: period must be MM/YYYY", apperrors.ErrValidation)
	}

	var month, year int
	fmt.Sscanf(m[1], "%d", &month)
	fmt.Sscanf(m[2], "%d", &year)
	return Period{Month: time.Month(month), Year: year}, nil
}

// Generate builds the bill for a subscriber's originated calls in the given
// period. Only closed periods can be billed; asking for the current or a
// future month is a validation error.
func (s *Service) Generate(ctx context.Context, subscriber string, period Period) (*Bill, error) {
	if !subscriberPattern.MatchString(subscriber) {
		return nil, fmt.Errorf("%w: invalid subscriber phone number", apperrors.ErrValidation)
	}

	if period.Month < time.January || period.Month > time.December || period.Year < 1 {
		return nil, fmt.Errorf("%w: invalid period", apperrors.ErrValidation)
	}
	from, to := period.Bounds()

	now := s.now().UTC()
	currentStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if to.After(currentStart) {
		return nil, fmt.Errorf("%w: period %s is not closed yet", apperrors.ErrValidation, period)
	}

	billed, err := s.calls.ListBilled(ctx, subscriber, from, to)
	if err != nil {
		return nil, fmt.Errorf("bill service: list calls: %w", err)
	}

	lines := make([]Line, 0, len(billed))
	for _, call := range billed {
		start := call.StartedAt.UTC()
		lines = append(lines, Line{
			Destination: call.Destination,
			StartDate:   start.Format("2006-01-02"),
			StartTime:   start.Format("15:04:05"),
			Duration:    domain.FormatDuration(call.EndedAt.Sub(call.StartedAt)),
			Price:       call.Price,
		})
	}

	return &Bill{Subscriber: subscriber, Period: period.String(), Calls: lines}, nil
}
