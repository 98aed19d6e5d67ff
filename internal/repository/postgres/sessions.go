package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/repository"
)

const sessionsTable = "auth.sessions"

var sessionColumns = []string{
	"id",
	"account_id",
	"ip_address",
	"user_agent",
	"device_fingerprint",
	"created_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{exec: tx, builder: r.builder}
}

// Create inserts the session and evicts the oldest entries beyond cap. When
// the executor supports transactions both statements share one, so a burst of
// concurrent logins can never leave the registry above the cap.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session, cap int) error {
	if beginner, ok := r.exec.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin session create tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := r.WithTx(tx).createAndEvict(ctx, session, cap); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit session create tx: %w", err)
		}
		return nil
	}

	return r.createAndEvict(ctx, session, cap)
}

func (r *SessionRepository) createAndEvict(ctx context.Context, session domain.Session, cap int) error {
	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.AccountID,
			session.IP,
			session.UserAgent,
			session.DeviceFingerprint,
			session.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if cap <= 0 {
		return nil
	}

	evict, evictArgs, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"account_id": session.AccountID}).
		Where(squirrel.Expr(
			"id NOT IN (SELECT id FROM "+sessionsTable+" WHERE account_id = ? ORDER BY created_at DESC, id DESC LIMIT ?)",
			session.AccountID, cap,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build evict sessions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, evict, evictArgs...); err != nil {
		return fmt.Errorf("evict oldest sessions: %w", err)
	}

	return nil
}

// ListByAccount returns the account's sessions, most recent first.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID string) (domain.SessionList, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions domain.SessionList
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.IP,
			&session.UserAgent,
			&session.DeviceFingerprint,
			&session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// GetByID retrieves a single session.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var session domain.Session
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&session.ID,
		&session.AccountID,
		&session.IP,
		&session.UserAgent,
		&session.DeviceFingerprint,
		&session.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

// Delete removes a single session.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteAllForAccount removes every session belonging to the account and
// reports how many were dropped.
func (r *SessionRepository) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete account sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
