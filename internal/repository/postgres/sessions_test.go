package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/repository"
)

func newSessionMock(t *testing.T) (pgxmock.PgxPoolIface, *SessionRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewSessionRepository(mock)
}

func TestSessionRepository_CreateEvictsBeyondCap(t *testing.T) {
	mock, repo := newSessionMock(t)

	createdAt := time.Now().UTC()
	session := domain.Session{
		ID:                "sess-1",
		AccountID:         "acct-1",
		IP:                "203.0.113.9",
		UserAgent:         "Mozilla/5.0",
		DeviceFingerprint: "fp-1",
		CreatedAt:         createdAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO auth\.sessions`).
		WithArgs(
			session.ID,
			session.AccountID,
			session.IP,
			session.UserAgent,
			session.DeviceFingerprint,
			session.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM auth\.sessions`).
		WithArgs(session.AccountID, session.AccountID, domain.MaxSessionsPerAccount).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), session, domain.MaxSessionsPerAccount); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListByAccount(t *testing.T) {
	mock, repo := newSessionMock(t)

	createdAt := time.Now().UTC()

	rows := pgxmock.NewRows(sessionColumns).
		AddRow("sess-2", "acct-1", "203.0.113.9", "Mozilla/5.0", "fp-2", createdAt).
		AddRow("sess-1", "acct-1", "203.0.113.9", "Mozilla/5.0", "fp-1", createdAt.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .*FROM auth\.sessions`).WithArgs("acct-1").WillReturnRows(rows)

	sessions, err := repo.ListByAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("ListByAccount returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-2" {
		t.Fatalf("expected newest session first, got %s", sessions[0].ID)
	}
	if !sessions.HasFingerprint("fp-1") {
		t.Fatal("expected fingerprint fp-1 to be known")
	}
	if sessions.HasFingerprint("fp-9") {
		t.Fatal("unexpected fingerprint match")
	}
}

func TestSessionRepository_DeleteMissing(t *testing.T) {
	mock, repo := newSessionMock(t)

	mock.ExpectExec(`DELETE FROM auth\.sessions`).
		WithArgs("sess-404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "sess-404"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_DeleteAllForAccount(t *testing.T) {
	mock, repo := newSessionMock(t)

	mock.ExpectExec(`DELETE FROM auth\.sessions`).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	count, err := repo.DeleteAllForAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("DeleteAllForAccount returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 deleted sessions, got %d", count)
	}
}
