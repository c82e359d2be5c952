package rating

import (
	"testing"

	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
)

func TestExpandBandsNonWrapping(t *testing.T) {
	rule := domain.TariffRule{
		ID:               uuid.New(),
		Name:             "Standard",
		StartTime:        domain.ClockTime(6, 0, 0),
		EndTime:          domain.ClockTime(22, 0, 0),
		StandingCharge:   36,
		MinuteCallCharge: 9,
	}

	bands := ExpandBands([]domain.TariffRule{rule})
	if len(bands) != 1 {
		t.Fatalf("expected 1 band, got %d", len(bands))
	}

	band := bands[0]
	if band.RuleID != rule.ID || band.Start != rule.StartTime || band.End != rule.EndTime {
		t.Fatalf("band does not match rule: %+v", band)
	}
	if band.StandingCharge != 36 || band.MinuteCharge != 9 {
		t.Fatalf("band charges do not match rule: %+v", band)
	}
}

func TestExpandBandsWrapping(t *testing.T) {
	rule := domain.TariffRule{
		ID:               uuid.New(),
		Name:             "Reduced",
		StartTime:        domain.ClockTime(22, 0, 0),
		EndTime:          domain.ClockTime(6, 0, 0),
		StandingCharge:   36,
		MinuteCallCharge: 0,
	}

	bands := ExpandBands([]domain.TariffRule{rule})
	if len(bands) != 2 {
		t.Fatalf("expected 2 bands for wrapping rule, got %d", len(bands))
	}

	head, tail := bands[0], bands[1]
	if head.Start != rule.StartTime || head.End != domain.ClockTime(0, 0, 0) {
		t.Errorf("head band should run from start to midnight, got %+v", head)
	}
	if tail.Start != domain.ClockTime(0, 0, 0) || tail.End != rule.EndTime {
		t.Errorf("tail band should run from midnight to end, got %+v", tail)
	}
	for _, band := range bands {
		if band.Start > band.End && band.End != domain.ClockTime(0, 0, 0) {
			t.Errorf("sub-band must not wrap: %+v", band)
		}
		if band.RuleID != rule.ID {
			t.Errorf("sub-band must keep the rule id")
		}
	}
}

func TestExpandBandsKeepsInsertionOrder(t *testing.T) {
	day := domain.TariffRule{ID: uuid.New(), StartTime: domain.ClockTime(6, 0, 0), EndTime: domain.ClockTime(22, 0, 0)}
	night := domain.TariffRule{ID: uuid.New(), StartTime: domain.ClockTime(22, 0, 0), EndTime: domain.ClockTime(6, 0, 0)}

	bands := ExpandBands([]domain.TariffRule{day, night})
	if len(bands) != 3 {
		t.Fatalf("expected 3 bands, got %d", len(bands))
	}
	if bands[0].RuleID != day.ID || bands[1].RuleID != night.ID || bands[2].RuleID != night.ID {
		t.Fatalf("expected wrap tail appended immediately after its head")
	}
}

func TestBandContains(t *testing.T) {
	toMidnight := Band{Start: domain.ClockTime(22, 0, 0), End: domain.ClockTime(0, 0, 0)}
	if !toMidnight.contains(domain.ClockTime(23, 59, 59)) {
		t.Errorf("band running to midnight should contain 23:59:59")
	}
	if toMidnight.contains(domain.ClockTime(21, 59, 59)) {
		t.Errorf("band should not contain times before its start")
	}

	fullDay := Band{Start: domain.ClockTime(3, 0, 0), End: domain.ClockTime(3, 0, 0)}
	if !fullDay.contains(domain.ClockTime(0, 0, 0)) || !fullDay.contains(domain.ClockTime(12, 0, 0)) {
		t.Errorf("full-day band should contain any clock time")
	}

	plain := Band{Start: domain.ClockTime(6, 0, 0), End: domain.ClockTime(22, 0, 0)}
	if plain.contains(domain.ClockTime(22, 0, 0)) {
		t.Errorf("band end is exclusive")
	}
	if !plain.contains(domain.ClockTime(6, 0, 0)) {
		t.Errorf("band start is inclusive")
	}
}
