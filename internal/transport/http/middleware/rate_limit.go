package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	throttleProblemType  = "https://auth.certbridge.example.com/errors/rate-limit-exceeded"
	throttleProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore defines the sliding-window persistence the throttle needs.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the key a throttle window is scoped by.
type IdentifierFunc func(*gin.Context) (string, bool)

// ThrottleRule is one sliding window applied to an endpoint group. Name
// namespaces the storage keys so login and registration windows never mix.
type ThrottleRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter throttles endpoint groups by client IP ahead of the
// account-level counters. It fails open: a store outage must not take the
// login path down with it.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// windowVerdict is the outcome of evaluating one request against a window.
type windowVerdict struct {
	allowed    bool
	limit      int
	remaining  int
	resetAt    time.Time
	retryAfter time.Duration
}

// ProblemDetails is the RFC 9457 payload returned on a throttled request.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds the throttle helper around a sliding-window store.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a window by the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// Throttle enforces one rule. A rule without a positive limit and window is
// a no-op so disabled configuration needs no special casing at call sites.
func (rl *RateLimiter) Throttle(rule ThrottleRule) gin.HandlerFunc {
	if rule.Identifier == nil {
		rule.Identifier = ClientIPIdentifier()
	}
	if rule.Name == "" {
		rule.Name = "default"
	}
	active := rule.Limit > 0 && rule.Window > 0

	return func(c *gin.Context) {
		if !active || rl.store == nil {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", rule.Name, identifier)
		verdict, err := rl.evaluate(c.Request.Context(), rule, key)
		if err != nil {
			rl.logger.Warn("throttle check failed, allowing request",
				zap.String("rule", rule.Name),
				zap.String("identifier", identifier),
				zap.Error(err),
			)
			c.Next()
			return
		}

		rl.writeHeaders(c, verdict)
		if !verdict.allowed {
			rl.respondThrottled(c, verdict)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule ThrottleRule, key string) (windowVerdict, error) {
	now := rl.now()

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowVerdict{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowVerdict{}, err
	}

	verdict := windowVerdict{
		limit:   rule.Limit,
		resetAt: now.Add(rule.Window),
	}

	// The window slides from the oldest retained attempt, so the reset
	// moment is when that attempt ages out, not a fixed interval from now.
	if oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err != nil {
		return windowVerdict{}, err
	} else if found {
		verdict.resetAt = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		verdict.retryAfter = verdict.resetAt.Sub(now)
		if verdict.retryAfter < 0 {
			verdict.retryAfter = 0
		}
		return verdict, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowVerdict{}, err
	}

	verdict.allowed = true
	verdict.remaining = max(rule.Limit-count-1, 0)
	return verdict, nil
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, verdict windowVerdict) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(verdict.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(verdict.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(verdict.resetAt.Unix(), 10))

	if !verdict.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(verdict)))
	}
}

func (rl *RateLimiter) respondThrottled(c *gin.Context, verdict windowVerdict) {
	seconds := retrySeconds(verdict)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := ProblemDetails{
		Type:       throttleProblemType,
		Title:      throttleProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, problem)
}

func retrySeconds(verdict windowVerdict) int {
	seconds := int(math.Ceil(verdict.retryAfter.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
