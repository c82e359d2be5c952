package domain

import (
	"testing"
	"time"
)

func TestCallDuration(t *testing.T) {
	start := &CallDetail{
		Kind:      DetailKindStart,
		Timestamp: time.Date(2017, 12, 12, 21, 57, 13, 0, time.UTC),
		CallID:    71,
	}
	end := &CallDetail{
		Kind:      DetailKindEnd,
		Timestamp: time.Date(2017, 12, 13, 22, 10, 56, 0, time.UTC),
		CallID:    71,
	}

	call := &Call{CallID: 71, Start: start, End: end}
	if got := call.Duration(); got != "24h13m43s" {
		t.Fatalf("expected 24h13m43s, got %s", got)
	}
}

func TestCallDurationIncomplete(t *testing.T) {
	start := &CallDetail{
		Kind:      DetailKindStart,
		Timestamp: time.Date(2018, 2, 28, 12, 0, 0, 0, time.UTC),
		CallID:    72,
	}

	cases := []*Call{
		{CallID: 72, Start: start},
		{CallID: 72, End: start},
		{CallID: 72},
	}
	for _, call := range cases {
		if got := call.Duration(); got != "0h0m0s" {
			t.Errorf("incomplete call: expected 0h0m0s, got %s", got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0h0m0s"},
		{2 * time.Hour, "2h0m0s"},
		{20*time.Minute + 40*time.Second, "0h20m40s"},
		{26*time.Hour + 5*time.Minute + 1*time.Second, "26h5m1s"},
		{-time.Minute, "0h0m0s"},
	}

	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v): expected %s, got %s", tc.d, tc.want, got)
		}
	}
}

func TestCallStateHelpers(t *testing.T) {
	call := &Call{CallID: 9}
	if !call.Empty() || call.Complete() {
		t.Fatalf("fresh call should be empty and not complete")
	}

	call.Start = &CallDetail{Kind: DetailKindStart, CallID: 9}
	if call.Empty() || call.Complete() {
		t.Fatalf("start-only call should be neither empty nor complete")
	}

	call.End = &CallDetail{Kind: DetailKindEnd, CallID: 9}
	if !call.Complete() {
		t.Fatalf("call with both details should be complete")
	}
}
