package redis

import (
	"context"
	"testing"
	"time"
)

func newRateLimitRepo(t *testing.T) *RateLimitRepository {
	t.Helper()

	client, _ := newTestClient(t)
	return NewRateLimitRepository(client, SlidingWindowConfig{
		KeyPrefix: "test_rl",
		TTL:       2 * time.Minute,
	})
}

func TestRateLimitCountsAttemptsInsideWindow(t *testing.T) {
	repo := newRateLimitRepo(t)
	ctx := context.Background()
	reference := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

	stamps := []time.Time{
		reference.Add(-90 * time.Second), // outside a 1m window
		reference.Add(-45 * time.Second),
		reference.Add(-10 * time.Second),
	}
	for _, at := range stamps {
		if err := repo.RecordAttempt(ctx, "203.0.113.9", at); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	count, err := repo.CountAttempts(ctx, "203.0.113.9", time.Minute, reference)
	if err != nil {
		t.Fatalf("CountAttempts failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestRateLimitTrimWindowDropsOldAttempts(t *testing.T) {
	repo := newRateLimitRepo(t)
	ctx := context.Background()
	reference := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

	old := reference.Add(-2 * time.Minute)
	recent := reference.Add(-20 * time.Second)
	for _, at := range []time.Time{old, recent} {
		if err := repo.RecordAttempt(ctx, "client", at); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	if err := repo.TrimWindow(ctx, "client", time.Minute, reference); err != nil {
		t.Fatalf("TrimWindow failed: %v", err)
	}

	count, err := repo.CountAttempts(ctx, "client", time.Hour, reference)
	if err != nil {
		t.Fatalf("CountAttempts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after trim = %d, want 1", count)
	}
}

func TestRateLimitOldestAttempt(t *testing.T) {
	repo := newRateLimitRepo(t)
	ctx := context.Background()
	reference := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)

	oldest := reference.Add(-50 * time.Second)
	for _, at := range []time.Time{reference.Add(-5 * time.Second), oldest, reference.Add(-30 * time.Second)} {
		if err := repo.RecordAttempt(ctx, "client", at); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}

	got, found, err := repo.OldestAttempt(ctx, "client", time.Minute, reference)
	if err != nil {
		t.Fatalf("OldestAttempt failed: %v", err)
	}
	if !found {
		t.Fatal("expected an attempt inside the window")
	}
	if !got.Equal(oldest) {
		t.Fatalf("oldest = %v, want %v", got, oldest)
	}
}

func TestRateLimitOldestAttemptEmptyWindow(t *testing.T) {
	repo := newRateLimitRepo(t)

	_, found, err := repo.OldestAttempt(context.Background(), "unknown", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("OldestAttempt failed: %v", err)
	}
	if found {
		t.Fatal("expected no attempt for unknown identifier")
	}
}

func TestRateLimitRejectsNonPositiveWindow(t *testing.T) {
	repo := newRateLimitRepo(t)
	ctx := context.Background()

	if _, err := repo.CountAttempts(ctx, "client", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window in CountAttempts")
	}
	if err := repo.TrimWindow(ctx, "client", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window in TrimWindow")
	}
	if _, _, err := repo.OldestAttempt(ctx, "client", 0, time.Now()); err == nil {
		t.Fatal("expected error for zero window in OldestAttempt")
	}
}
