package bill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
	apperrors "github.com/acme/call-billing/pkg/errors"
)

type stubCallRepo struct {
	billed   []repository.BilledCall
	err      error
	source   string
	from, to time.Time
}

func (r *stubCallRepo) Get(context.Context, int64) (*domain.Call, error) { return nil, nil }
func (r *stubCallRepo) Create(context.Context, *domain.Call) error       { return nil }
func (r *stubCallRepo) Update(context.Context, *domain.Call) error       { return nil }
func (r *stubCallRepo) Delete(context.Context, int64) error              { return nil }
func (r *stubCallRepo) List(context.Context, int) ([]domain.Call, error) { return nil, nil }

func (r *stubCallRepo) ListBilled(_ context.Context, source string, from, to time.Time) ([]repository.BilledCall, error) {
	r.source, r.from, r.to = source, from, to
	return r.billed, r.err
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParsePeriod(t *testing.T) {
	svc := NewService(&stubCallRepo{})
	svc.now = fixedNow(time.Date(2018, 3, 15, 10, 0, 0, 0, time.UTC))

	cases := []struct {
		raw     string
		want    Period
		wantErr bool
	}{
		{"12/2017", Period{Month: time.December, Year: 2017}, false},
		{"01/2018", Period{Month: time.January, Year: 2018}, false},
		{"", Period{Month: time.February, Year: 2018}, false},
		{"13/2017", Period{}, true},
		{"00/2017", Period{}, true},
		{"2017/12", Period{}, true},
		{"1/2017", Period{}, true},
		{"12-2017", Period{}, true},
	}

	for _, tc := range cases {
		got, err := svc.ParsePeriod(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("ParsePeriod(%q) err = %v, want ErrValidation", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePeriod(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePeriod(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParsePeriodDefaultAcrossYearBoundary(t *testing.T) {
	svc := NewService(&stubCallRepo{})
	svc.now = fixedNow(time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC))

	got, err := svc.ParsePeriod("")
	if err != nil {
		t.Fatalf("ParsePeriod: %v", err)
	}
	if got.Month != time.December || got.Year != 2017 {
		t.Errorf("default period = %v, want 12/2017", got)
	}
}

func TestGenerateBuildsLines(t *testing.T) {
	repo := &stubCallRepo{billed: []repository.BilledCall{
		{
			CallID:      70,
			Destination: "9993468278",
			StartedAt:   time.Date(2017, 12, 12, 15, 7, 13, 0, time.UTC),
			EndedAt:     time.Date(2017, 12, 12, 15, 14, 56, 0, time.UTC),
			Price:       1116,
		},
		{
			CallID:      71,
			Destination: "9993468278",
			StartedAt:   time.Date(2017, 12, 12, 21, 57, 13, 0, time.UTC),
			EndedAt:     time.Date(2017, 12, 13, 22, 10, 56, 0, time.UTC),
			Price:       9184,
		},
	}}
	svc := NewService(repo)
	svc.now = fixedNow(time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC))

	bill, err := svc.Generate(context.Background(), "99988526423", Period{Month: time.December, Year: 2017})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if bill.Subscriber != "99988526423" || bill.Period != "12/2017" {
		t.Errorf("header = %s %s, want 99988526423 12/2017", bill.Subscriber, bill.Period)
	}
	if repo.source != "99988526423" {
		t.Errorf("queried source = %q", repo.source)
	}
	if !repo.from.Equal(time.Date(2017, 12, 1, 0, 0, 0, 0, time.UTC)) ||
		!repo.to.Equal(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("queried window = [%v, %v)", repo.from, repo.to)
	}

	if len(bill.Calls) != 2 {
		t.Fatalf("got %d lines, want 2", len(bill.Calls))
	}
	first := bill.Calls[0]
	if first.StartDate != "2017-12-12" || first.StartTime != "15:07:13" {
		t.Errorf("first start = %s %s", first.StartDate, first.StartTime)
	}
	if first.Duration != "0h7m43s" || first.Price != 1116 {
		t.Errorf("first line = %+v", first)
	}
	second := bill.Calls[1]
	if second.Duration != "24h13m43s" || second.Price != 9184 {
		t.Errorf("second line = %+v", second)
	}
}

func TestGenerateEmptyPeriod(t *testing.T) {
	svc := NewService(&stubCallRepo{})
	svc.now = fixedNow(time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC))

	bill, err := svc.Generate(context.Background(), "99988526423", Period{Month: time.January, Year: 2018})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bill.Calls == nil || len(bill.Calls) != 0 {
		t.Errorf("calls = %#v, want empty non-nil slice", bill.Calls)
	}
}

func TestGenerateRejectsOpenPeriods(t *testing.T) {
	svc := NewService(&stubCallRepo{})
	svc.now = fixedNow(time.Date(2018, 2, 15, 0, 0, 0, 0, time.UTC))

	for _, period := range []Period{
		{Month: time.February, Year: 2018},
		{Month: time.March, Year: 2018},
		{Month: time.January, Year: 2019},
	} {
		if _, err := svc.Generate(context.Background(), "99988526423", period); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Generate(%v) err = %v, want ErrValidation", period, err)
		}
	}
}

func TestGenerateRejectsBadSubscriber(t *testing.T) {
	svc := NewService(&stubCallRepo{})
	svc.now = fixedNow(time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC))

	for _, subscriber := range []string{"", "abc", "999885264231", "99-98852642"} {
		if _, err := svc.Generate(context.Background(), subscriber, Period{Month: time.January, Year: 2018}); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Generate(%q) err = %v, want ErrValidation", subscriber, err)
		}
	}
}

func TestGeneratePropagatesRepositoryError(t *testing.T) {
	repo := &stubCallRepo{err: errors.New("postgres down")}
	svc := NewService(repo)
	svc.now = fixedNow(time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC))

	if _, err := svc.Generate(context.Background(), "99988526423", Period{Month: time.January, Year: 2018}); err == nil {
		t.Error("expected error")
	}
}
