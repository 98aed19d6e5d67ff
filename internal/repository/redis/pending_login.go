package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/security"
	"github.com/certbridge/auth-service/internal/repository"
)

const (
	defaultPendingLoginPrefix = "pending_login"

	fieldAccountID   = "account_id"
	fieldIP          = "ip"
	fieldFingerprint = "fingerprint"
	fieldCreatedAt   = "created_at"
)

// PendingLoginRepository stores first-factor continuations in Redis. Keys are
// derived from the token digest so a raw continuation token never lands in
// the store.
type PendingLoginRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewPendingLoginRepository constructs the repository with the provided Redis client and key prefix.
func NewPendingLoginRepository(client *red.Client, keyPrefix string) *PendingLoginRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPendingLoginPrefix
	}

	return &PendingLoginRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (r *PendingLoginRepository) WithClock(now func() time.Time) *PendingLoginRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Create stores the continuation under the hashed token with the given TTL.
func (r *PendingLoginRepository) Create(ctx context.Context, token string, pending domain.PendingLogin, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(token) == "":
		return errors.New("token is required")
	case pending.AccountID == "":
		return errors.New("account id is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	createdAt := pending.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}

	key := r.key(token)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldAccountID:   pending.AccountID,
		fieldIP:          pending.IP,
		fieldFingerprint: pending.DeviceFingerprint,
		fieldCreatedAt:   strconv.FormatInt(createdAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store pending login: %w", err)
	}

	return nil
}

// Consume retrieves and deletes the continuation so the token spends once.
func (r *PendingLoginRepository) Consume(ctx context.Context, token string) (*domain.PendingLogin, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}

	key := r.key(token)

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall pending login: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("redis del pending login: %w", err)
	}

	accountID := values[fieldAccountID]
	if accountID == "" {
		return nil, repository.ErrNotFound
	}

	pending := &domain.PendingLogin{
		AccountID:         accountID,
		IP:                values[fieldIP],
		DeviceFingerprint: values[fieldFingerprint],
	}

	if raw := values[fieldCreatedAt]; raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			pending.CreatedAt = time.Unix(ts, 0).UTC()
		}
	}

	return pending, nil
}

func (r *PendingLoginRepository) key(token string) string {
	return fmt.Sprintf("%s:%s", r.prefix, security.HashToken(token))
}

var _ port.PendingLoginStore = (*PendingLoginRepository)(nil)
