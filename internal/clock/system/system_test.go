package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockNowTruncates(t *testing.T) {
	t.Parallel()

	got := Clock{Precision: time.Second}.Now()
	if got.Nanosecond() != 0 {
		t.Fatalf("expected whole seconds, got %v", got)
	}
	if New().Now().Nanosecond()%int(time.Microsecond) != 0 {
		t.Fatal("expected microsecond precision")
	}
}

func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	if second.Before(first) {
		t.Fatalf("expected second call %v to be >= first %v", second, first)
	}
}
