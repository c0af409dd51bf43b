package service

import (
	"errors"
	"testing"
	"time"
)

func TestResolveExpiryPresets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		spec string
		want time.Time
	}{
		{"1 hour", now.Add(time.Hour)},
		{"12 hours", now.Add(12 * time.Hour)},
		{"7 days", now.Add(7 * 24 * time.Hour)},
		{"1 month", now.Add(30 * 24 * time.Hour)},
		{"1 year", now.Add(365 * 24 * time.Hour)},
	}
	for _, tc := range cases {
		got, err := ResolveExpiry(tc.spec, now)
		if err != nil {
			t.Fatalf("ResolveExpiry(%q) error: %v", tc.spec, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ResolveExpiry(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestResolveExpiryAllPresetsResolve(t *testing.T) {
	now := time.Now()
	for _, spec := range DurationPresets() {
		got, err := ResolveExpiry(spec, now)
		if err != nil {
			t.Fatalf("preset %q failed to resolve: %v", spec, err)
		}
		if !got.After(now) {
			t.Fatalf("preset %q resolved to non-future time %v", spec, got)
		}
	}
}

func TestResolveExpiryCustomFuture(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	got, err := ResolveExpiry("custom_2026-06-15 09:30:00", now)
	if err != nil {
		t.Fatalf("ResolveExpiry error: %v", err)
	}
	want := time.Date(2026, 6, 15, 9, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestResolveExpiryCustomPast(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	if _, err := ResolveExpiry("custom_2026-03-01 12:00:00", now); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate for non-future time, got: %v", err)
	}
	if _, err := ResolveExpiry("custom_2020-01-01 00:00:00", now); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate for past time, got: %v", err)
	}
}

func TestResolveExpiryCustomMalformed(t *testing.T) {
	now := time.Now()
	for _, spec := range []string{
		"custom_2026-06-15",
		"custom_not-a-date",
		"custom_",
	} {
		if _, err := ResolveExpiry(spec, now); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration for %q, got: %v", spec, err)
		}
	}
}

func TestResolveExpiryRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		spec string
		want time.Time
	}{
		{"45 minutes", now.Add(45 * time.Minute)},
		{"2 weeks", now.Add(2 * 7 * 24 * time.Hour)},
		{"10 Days", now.Add(10 * 24 * time.Hour)},
		{"  1 hour  ", now.Add(time.Hour)},
	}
	for _, tc := range cases {
		got, err := ResolveExpiry(tc.spec, now)
		if err != nil {
			t.Fatalf("ResolveExpiry(%q) error: %v", tc.spec, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ResolveExpiry(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestResolveExpiryInvalid(t *testing.T) {
	now := time.Now()
	for _, spec := range []string{
		"",
		"soon",
		"0 days",
		"-3 hours",
		"three days",
		"5 fortnights",
		"7",
	} {
		if _, err := ResolveExpiry(spec, now); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration for %q, got: %v", spec, err)
		}
	}
}
