package usecase

import (
	"context"
	"testing"
	"time"
)

func TestDelayForAttempts(t *testing.T) {
	cases := []struct {
		prior int
		want  time.Duration
	}{
		{prior: 0, want: 1 * time.Second},
		{prior: 1, want: 2 * time.Second},
		{prior: 2, want: 5 * time.Second},
		{prior: 3, want: 10 * time.Second},
		{prior: 4, want: 30 * time.Second},
		{prior: 5, want: 30 * time.Second},
		{prior: 50, want: 30 * time.Second},
		{prior: -1, want: 1 * time.Second},
	}

	for _, tc := range cases {
		if got := DelayForAttempts(tc.prior); got != tc.want {
			t.Errorf("DelayForAttempts(%d) = %v, want %v", tc.prior, got, tc.want)
		}
	}
}

func TestDefaultSleeperReturnsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	DefaultSleeper(ctx, 30*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled sleep took %v", elapsed)
	}
}

func TestDefaultSleeperSkipsNonPositive(t *testing.T) {
	start := time.Now()
	DefaultSleeper(context.Background(), 0)
	DefaultSleeper(context.Background(), -time.Second)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("non-positive delay took %v", elapsed)
	}
}
