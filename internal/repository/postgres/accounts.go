package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/repository"
)

const (
	accountsTable        = "auth.accounts"
	passwordHistoryTable = "auth.password_history"
)

var accountColumns = []string{
	"id",
	"username",
	"email",
	"role",
	"password_hash",
	"state",
	"locked_until",
	"failed_attempts",
	"second_factor_failures",
	"second_factor_mode",
	"second_factor_secret",
	"second_factor_temp",
	"token_version",
	"password_expiry_days",
	"last_password_change",
	"registered_at",
	"last_login",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
// Counter and state transitions are single conditional UPDATE statements so
// concurrent requests against one account serialize on the row.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{exec: tx, builder: r.builder}
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Username,
			account.Email,
			account.Role,
			account.PasswordHash,
			string(account.State),
			account.LockedUntil,
			account.FailedAttempts,
			account.SecondFactorFailures,
			string(account.SecondFactorMode),
			account.SecondFactorSecret,
			account.SecondFactorTemp,
			account.TokenVersion,
			account.PasswordExpiryDays,
			account.LastPasswordChange,
			account.RegisteredAt,
			account.LastLogin,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		state       string
		mode        string
		lockedUntil *time.Time
		lastLogin   *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.Role,
		&account.PasswordHash,
		&state,
		&lockedUntil,
		&account.FailedAttempts,
		&account.SecondFactorFailures,
		&mode,
		&account.SecondFactorSecret,
		&account.SecondFactorTemp,
		&account.TokenVersion,
		&account.PasswordExpiryDays,
		&account.LastPasswordChange,
		&account.RegisteredAt,
		&lastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.State = domain.AccountState(state)
	account.SecondFactorMode = domain.SecondFactorMode(mode)
	account.LockedUntil = lockedUntil
	account.LastLogin = lastLogin

	return &account, nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier retrieves an account by username or email.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by identifier sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// IncrementFailedAttempts atomically bumps the counter and returns the new value.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_attempts", squirrel.Expr("failed_attempts + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment failed attempts sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}

	return count, nil
}

// ResetFailedAttempts zeroes the counter without touching account state.
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_attempts", 0).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset failed attempts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}

	return nil
}

// IncrementSecondFactorFailures bumps the separate second-factor counter.
func (r *AccountRepository) IncrementSecondFactorFailures(ctx context.Context, id string) (int, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("second_factor_failures", squirrel.Expr("second_factor_failures + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING second_factor_failures").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment second factor failures sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment second factor failures: %w", err)
	}

	return count, nil
}

// Lock transitions an active account to locked once the counter has durably
// reached minAttempts. The state guard makes the transition idempotent under
// concurrent failures.
func (r *AccountRepository) Lock(ctx context.Context, id string, until time.Time, minAttempts int) (bool, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("state", string(domain.AccountStateLocked)).
		Set("locked_until", until).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"state": string(domain.AccountStateActive)}).
		Where(squirrel.GtOrEq{"failed_attempts": minAttempts}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lock account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("lock account: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UnlockIfExpired clears an elapsed lockout and resets the counter in the
// same statement. Returns false when the account was not expired-locked.
func (r *AccountRepository) UnlockIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("state", string(domain.AccountStateActive)).
		Set("locked_until", nil).
		Set("failed_attempts", 0).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"state": string(domain.AccountStateLocked)}).
		Where(squirrel.LtOrEq{"locked_until": now}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build unlock account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("unlock account: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UnlockExpired unlocks every account whose lockout deadline has passed and
// returns their identifiers.
func (r *AccountRepository) UnlockExpired(ctx context.Context, now time.Time) ([]string, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("state", string(domain.AccountStateActive)).
		Set("locked_until", nil).
		Set("failed_attempts", 0).
		Where(squirrel.Eq{"state": string(domain.AccountStateLocked)}).
		Where(squirrel.LtOrEq{"locked_until": now}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unlock expired sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("unlock expired accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unlocked account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unlocked accounts: %w", err)
	}

	return ids, nil
}

// UpdatePassword replaces the credential hash and stamps the change time.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("password_hash", passwordHash).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// BumpTokenVersion invalidates previously issued bearer tokens.
func (r *AccountRepository) BumpTokenVersion(ctx context.Context, id string) (int64, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("token_version", squirrel.Expr("token_version + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING token_version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bump token version sql: %w", err)
	}

	var version int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	return version, nil
}

// UpdateLastLogin stamps the most recent successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	return nil
}

// ListPasswordHistory returns the most recent superseded hashes, newest first.
func (r *AccountRepository) ListPasswordHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	query := r.builder.
		Select("id", "account_id", "password_hash", "changed_at").
		From(passwordHistoryTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("changed_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan password history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return entries, nil
}

// AddPasswordHistory records a superseded credential hash.
func (r *AccountRepository) AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	stmt, args, err := r.builder.Insert(passwordHistoryTable).
		Columns("id", "account_id", "password_hash", "changed_at").
		Values(entry.ID, entry.AccountID, entry.PasswordHash, entry.ChangedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	return nil
}

// TrimPasswordHistory drops entries beyond the retention window, keeping the
// newest maxEntries rows.
func (r *AccountRepository) TrimPasswordHistory(ctx context.Context, accountID string, maxEntries int) error {
	if maxEntries < 0 {
		maxEntries = 0
	}

	stmt, args, err := r.builder.Delete(passwordHistoryTable).
		Where(squirrel.Eq{"account_id": accountID}).
		Where(squirrel.Expr(
			"id NOT IN (SELECT id FROM "+passwordHistoryTable+" WHERE account_id = ? ORDER BY changed_at DESC LIMIT ?)",
			accountID, maxEntries,
		)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build trim password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	return nil
}

// SetPendingSecondFactor stores a temporary secret awaiting confirmation.
func (r *AccountRepository) SetPendingSecondFactor(ctx context.Context, id string, tempSecret string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("second_factor_temp", tempSecret).
		Set("second_factor_mode", string(domain.SecondFactorPending)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set pending second factor sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set pending second factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// PromoteSecondFactor moves the pending secret into place and enables the factor.
func (r *AccountRepository) PromoteSecondFactor(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("second_factor_secret", squirrel.Expr("second_factor_temp")).
		Set("second_factor_temp", "").
		Set("second_factor_mode", string(domain.SecondFactorEnabled)).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"second_factor_mode": string(domain.SecondFactorPending)}).
		Where(squirrel.NotEq{"second_factor_temp": ""}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build promote second factor sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("promote second factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DisableSecondFactor clears both secrets and the failure counter.
func (r *AccountRepository) DisableSecondFactor(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("second_factor_secret", "").
		Set("second_factor_temp", "").
		Set("second_factor_mode", string(domain.SecondFactorDisabled)).
		Set("second_factor_failures", 0).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build disable second factor sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("disable second factor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
