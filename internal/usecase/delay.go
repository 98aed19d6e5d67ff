package usecase

import (
	"context"
	"time"
)

// delaySchedule maps the attempt ordinal (first failure = 1) to the pause
// applied before responding. Beyond the fifth attempt the delay stays capped.
var delaySchedule = [...]time.Duration{
	1: 1 * time.Second,
	2: 2 * time.Second,
	3: 5 * time.Second,
	4: 10 * time.Second,
	5: 30 * time.Second,
}

// DelayForAttempts returns the progressive delay owed by the current attempt
// given the number of failures recorded before it. The first attempt after a
// clean slate still pays the base 1s.
func DelayForAttempts(priorFailures int) time.Duration {
	ordinal := priorFailures + 1
	if ordinal < 1 {
		ordinal = 1
	}
	if ordinal > 5 {
		ordinal = 5
	}
	return delaySchedule[ordinal]
}

// MaxDelay returns the cap of the schedule. Transport write deadlines must
// sit above it or a delayed rejection body never reaches the client.
func MaxDelay() time.Duration {
	return delaySchedule[len(delaySchedule)-1]
}

// Sleeper blocks the current request for the given duration. It is injected
// so tests never actually sleep, and so cancellation shortens the wait.
type Sleeper func(ctx context.Context, d time.Duration)

// DefaultSleeper waits out the duration or returns early on context cancellation.
func DefaultSleeper(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
