package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/certbridge/auth-service/internal/core/domain"
	"github.com/certbridge/auth-service/internal/repository"
)

// stubAccountRepository is an in-memory port.AccountRepository for pipeline tests.
type stubAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	history  map[string][]domain.PasswordHistoryEntry
}

func newStubAccountRepository(accounts ...*domain.Account) *stubAccountRepository {
	repo := &stubAccountRepository{
		accounts: make(map[string]*domain.Account),
		history:  make(map[string][]domain.PasswordHistoryEntry),
	}
	for _, account := range accounts {
		copied := *account
		repo.accounts[account.ID] = &copied
	}
	return repo
}

func (r *stubAccountRepository) get(id string) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		copied := *account
		return &copied
	}
	return nil
}

func (r *stubAccountRepository) put(account *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *account
	r.accounts[account.ID] = &copied
}

func (r *stubAccountRepository) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	r.accounts[account.ID] = &account
	return nil
}

func (r *stubAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if account := r.get(id); account != nil {
		return account, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Username == identifier || account.Email == identifier {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepository) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.FailedAttempts++
	return account.FailedAttempts, nil
}

func (r *stubAccountRepository) ResetFailedAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.FailedAttempts = 0
	}
	return nil
}

func (r *stubAccountRepository) IncrementSecondFactorFailures(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.SecondFactorFailures++
	return account.SecondFactorFailures, nil
}

func (r *stubAccountRepository) Lock(_ context.Context, id string, until time.Time, minAttempts int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if account.State != domain.AccountStateActive || account.FailedAttempts < minAttempts {
		return false, nil
	}
	account.State = domain.AccountStateLocked
	u := until
	account.LockedUntil = &u
	return true, nil
}

func (r *stubAccountRepository) UnlockIfExpired(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if account.State != domain.AccountStateLocked || account.LockedUntil == nil || account.LockedUntil.After(now) {
		return false, nil
	}
	account.State = domain.AccountStateActive
	account.LockedUntil = nil
	account.FailedAttempts = 0
	return true, nil
}

func (r *stubAccountRepository) UnlockExpired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, account := range r.accounts {
		if account.State == domain.AccountStateLocked && account.LockedUntil != nil && !account.LockedUntil.After(now) {
			account.State = domain.AccountStateActive
			account.LockedUntil = nil
			account.FailedAttempts = 0
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *stubAccountRepository) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.LastPasswordChange = changedAt
	return nil
}

func (r *stubAccountRepository) BumpTokenVersion(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.TokenVersion++
	return account.TokenVersion, nil
}

func (r *stubAccountRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		t := at
		account.LastLogin = &t
	}
	return nil
}

func (r *stubAccountRepository) ListPasswordHistory(_ context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append([]domain.PasswordHistoryEntry(nil), r.history[accountID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChangedAt.After(entries[j].ChangedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *stubAccountRepository) AddPasswordHistory(_ context.Context, entry domain.PasswordHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.AccountID] = append(r.history[entry.AccountID], entry)
	return nil
}

func (r *stubAccountRepository) TrimPasswordHistory(_ context.Context, accountID string, maxEntries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[accountID]
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChangedAt.After(entries[j].ChangedAt) })
	if maxEntries >= 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	r.history[accountID] = entries
	return nil
}

func (r *stubAccountRepository) SetPendingSecondFactor(_ context.Context, id string, tempSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.SecondFactorTemp = tempSecret
	account.SecondFactorMode = domain.SecondFactorPending
	return nil
}

func (r *stubAccountRepository) PromoteSecondFactor(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok || account.SecondFactorMode != domain.SecondFactorPending || account.SecondFactorTemp == "" {
		return repository.ErrNotFound
	}
	account.SecondFactorSecret = account.SecondFactorTemp
	account.SecondFactorTemp = ""
	account.SecondFactorMode = domain.SecondFactorEnabled
	return nil
}

func (r *stubAccountRepository) DisableSecondFactor(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.SecondFactorSecret = ""
	account.SecondFactorTemp = ""
	account.SecondFactorMode = domain.SecondFactorDisabled
	account.SecondFactorFailures = 0
	return nil
}

// stubSessionRepository keeps sessions in memory with cap eviction.
type stubSessionRepository struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func (r *stubSessionRepository) Create(_ context.Context, session domain.Session, cap int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append([]domain.Session{session}, r.sessions...)
	if cap > 0 {
		var kept []domain.Session
		count := 0
		for _, s := range r.sessions {
			if s.AccountID != session.AccountID {
				kept = append(kept, s)
				continue
			}
			if count < cap {
				kept = append(kept, s)
				count++
			}
		}
		r.sessions = kept
	}
	return nil
}

func (r *stubSessionRepository) ListByAccount(_ context.Context, accountID string) (domain.SessionList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list domain.SessionList
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (r *stubSessionRepository) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == sessionID {
			copied := s
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sessions {
		if s.ID == sessionID {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubSessionRepository) DeleteAllForAccount(_ context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.Session
	removed := 0
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.sessions = kept
	return removed, nil
}

// stubPendingStore is an in-memory continuation store.
type stubPendingStore struct {
	mu      sync.Mutex
	entries map[string]domain.PendingLogin
}

func newStubPendingStore() *stubPendingStore {
	return &stubPendingStore{entries: make(map[string]domain.PendingLogin)}
}

func (s *stubPendingStore) Create(_ context.Context, token string, pending domain.PendingLogin, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = pending
	return nil
}

func (s *stubPendingStore) Consume(_ context.Context, token string) (*domain.PendingLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.entries[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.entries, token)
	return &pending, nil
}

// stubCaptchaVerifier returns a canned verdict or error.
type stubCaptchaVerifier struct {
	result *domain.CaptchaResult
	err    error
	calls  int
}

func (v *stubCaptchaVerifier) Verify(_ context.Context, _, _ string) (*domain.CaptchaResult, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	if v.result != nil {
		return v.result, nil
	}
	return &domain.CaptchaResult{Accepted: true, Score: 0.9}, nil
}

// stubPublisher records published events for assertions.
type stubPublisher struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	locked     []domain.AccountLockedEvent
	unlocked   []domain.AccountUnlockedEvent
	pwChanged  []domain.PasswordChangedEvent
	tfEnabled  []domain.SecondFactorEnabledEvent
	tfDisabled []domain.SecondFactorDisabledEvent
	newDevice  []domain.NewDeviceEvent
}

func (p *stubPublisher) PublishAccountRegistered(_ context.Context, e domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *stubPublisher) PublishAccountLocked(_ context.Context, e domain.AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, e)
	return nil
}

func (p *stubPublisher) PublishAccountUnlocked(_ context.Context, e domain.AccountUnlockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlocked = append(p.unlocked, e)
	return nil
}

func (p *stubPublisher) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pwChanged = append(p.pwChanged, e)
	return nil
}

func (p *stubPublisher) PublishSecondFactorEnabled(_ context.Context, e domain.SecondFactorEnabledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tfEnabled = append(p.tfEnabled, e)
	return nil
}

func (p *stubPublisher) PublishSecondFactorDisabled(_ context.Context, e domain.SecondFactorDisabledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tfDisabled = append(p.tfDisabled, e)
	return nil
}

func (p *stubPublisher) PublishNewDevice(_ context.Context, e domain.NewDeviceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newDevice = append(p.newDevice, e)
	return nil
}

// recordingSleeper captures requested delays without sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) {
	s.delays = append(s.delays, d)
}
