package domain

import (
	"testing"
	"time"
)

func TestBackoffDelay_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 5 * time.Second

	tests := []struct {
		retries int
		floor   time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
	}

	for _, tt := range tests {
		// Jitter is random, so sample repeatedly and check the bounds hold.
		for i := 0; i < 50; i++ {
			got := BackoffDelay(tt.retries, base, max)
			ceiling := time.Duration(float64(tt.floor) * (1 + backoffJitterFactor))
			if got < tt.floor || got > ceiling {
				t.Fatalf(
					"retries=%d: delay %v outside [%v, %v]",
					tt.retries, got, tt.floor, ceiling,
				)
			}
		}
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := 400 * time.Millisecond
	ceiling := time.Duration(float64(max) * (1 + backoffJitterFactor))

	for i := 0; i < 50; i++ {
		got := BackoffDelay(10, base, max)
		if got < max || got > ceiling {
			t.Fatalf("capped delay %v outside [%v, %v]", got, max, ceiling)
		}
	}
}

func TestBackoffDelay_FloorsNonDecreasing(t *testing.T) {
	base := 50 * time.Millisecond
	max := 2 * time.Second

	// The un-jittered floor must never decrease as retries accumulate; with
	// jitter bounded at 30%, any sampled delay for retries n+1 is at least
	// the floor for n+1, which is >= the floor for n.
	prevFloor := time.Duration(0)
	for retries := 0; retries < 8; retries++ {
		floor := base
		for i := 0; i < retries && floor < max; i++ {
			floor *= 2
		}
		if floor > max {
			floor = max
		}
		if floor < prevFloor {
			t.Fatalf("floor decreased at retries=%d: %v < %v", retries, floor, prevFloor)
		}
		prevFloor = floor

		got := BackoffDelay(retries, base, max)
		if got < floor {
			t.Fatalf("retries=%d: delay %v below floor %v", retries, got, floor)
		}
	}
}

func TestBackoffDelay_ZeroBase(t *testing.T) {
	if got := BackoffDelay(3, 0, time.Second); got != 0 {
		t.Errorf("expected 0 for zero base, got %v", got)
	}
}

func TestBackoffDelay_MaxBelowBase(t *testing.T) {
	base := time.Second
	got := BackoffDelay(0, base, 100*time.Millisecond)
	ceiling := time.Duration(float64(base) * (1 + backoffJitterFactor))
	if got < base || got > ceiling {
		t.Errorf("delay %v outside [%v, %v] when max is below base", got, base, ceiling)
	}
}
