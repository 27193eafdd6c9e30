package scheduler

import (
	"testing"
	"time"
)

func TestDueFiresOnFirstMatchingMinute(t *testing.T) {
	s := New()
	now := time.Date(2026, 8, 6, 9, 5, 0, 0, time.UTC)
	due, err := s.Due("*/5 * * * *", time.Time{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !due {
		t.Fatal("expected 09:05 to be due for */5 * * * *")
	}
}

func TestDueDoesNotRefireWithinSameMinute(t *testing.T) {
	s := New()
	now := time.Date(2026, 8, 6, 9, 5, 30, 0, time.UTC)
	last := time.Date(2026, 8, 6, 9, 5, 0, 0, time.UTC)
	due, err := s.Due("*/5 * * * *", last, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if due {
		t.Fatal("expected no refire within the same matching minute")
	}
}

func TestDueRejectsNonMatchingExpression(t *testing.T) {
	s := New()
	now := time.Date(2026, 8, 6, 9, 6, 0, 0, time.UTC)
	due, err := s.Due("*/5 * * * *", time.Time{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if due {
		t.Fatal("expected 09:06 not to be due for */5 * * * *")
	}
}
