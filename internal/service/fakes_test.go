package service

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"glowspa/api/internal/models"
	"glowspa/api/internal/repository"
)

// In-memory stand-ins for the pgx and redis stores. They implement the
// same semantics the real stores promise: atomic rotation outcomes, lockout
// counters, per-user session sets.

type fakeCredentialStore struct {
	byEmail     map[string]models.User
	byID        map[string]models.User
	assignments map[string][]models.RoleAssignment
	lookups     int
	err         error
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		byEmail:     make(map[string]models.User),
		byID:        make(map[string]models.User),
		assignments: make(map[string][]models.RoleAssignment),
	}
}

func (f *fakeCredentialStore) add(user models.User) {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
}

func (f *fakeCredentialStore) FindByIdentifier(_ context.Context, email string) (models.User, error) {
	f.lookups++
	if f.err != nil {
		return models.User{}, f.err
	}
	user, ok := f.byEmail[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeCredentialStore) GetByID(_ context.Context, id string) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	user, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeCredentialStore) Assignments(_ context.Context, userID string) ([]models.RoleAssignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments[userID], nil
}

func (f *fakeCredentialStore) UpdatePassword(_ context.Context, userID string, hash []byte) error {
	if f.err != nil {
		return f.err
	}
	user, ok := f.byID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	f.byID[userID] = user
	f.byEmail[user.Email] = user
	return nil
}

type fakeSessionStore struct {
	sessions map[string]models.Session
	refresh  map[string]string
	lockouts map[string]int64
	sets     map[string]map[string]struct{}
	touches  map[string]int
	err      error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]models.Session),
		refresh:  make(map[string]string),
		lockouts: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
		touches:  make(map[string]int),
	}
}

var errStoreDown = errors.New("store unreachable")

func (f *fakeSessionStore) PutSession(_ context.Context, session models.Session, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (models.Session, error) {
	if f.err != nil {
		return models.Session{}, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) TouchSession(_ context.Context, sessionID string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.sessions[sessionID]; !ok {
		return repository.ErrSessionNotFound
	}
	f.touches[sessionID]++
	return nil
}

func (f *fakeSessionStore) DeleteSession(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionStore) PutRefreshHash(_ context.Context, sessionID string, hash []byte, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.refresh[sessionID] = hex.EncodeToString(hash)
	return nil
}

func (f *fakeSessionStore) RotateRefreshHash(_ context.Context, sessionID string, oldHash, newHash []byte, _ time.Duration) (repository.RotateResult, error) {
	if f.err != nil {
		return repository.RotateMissing, f.err
	}
	current, ok := f.refresh[sessionID]
	if !ok {
		return repository.RotateMissing, nil
	}
	if current != hex.EncodeToString(oldHash) {
		return repository.RotateMismatch, nil
	}
	f.refresh[sessionID] = hex.EncodeToString(newHash)
	return repository.RotateOK, nil
}

func (f *fakeSessionStore) DeleteRefreshHash(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.refresh, sessionID)
	return nil
}

func (f *fakeSessionStore) IncrLockout(_ context.Context, identifier string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.lockouts[identifier]++
	return f.lockouts[identifier], nil
}

func (f *fakeSessionStore) GetLockout(_ context.Context, identifier string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.lockouts[identifier], nil
}

func (f *fakeSessionStore) ClearLockout(_ context.Context, identifier string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.lockouts, identifier)
	return nil
}

func (f *fakeSessionStore) AddUserSession(_ context.Context, userID, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	if f.sets[userID] == nil {
		f.sets[userID] = make(map[string]struct{})
	}
	f.sets[userID][sessionID] = struct{}{}
	return nil
}

func (f *fakeSessionStore) RemoveUserSession(_ context.Context, userID, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.sets[userID], sessionID)
	return nil
}

func (f *fakeSessionStore) UserSessions(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, 0, len(f.sets[userID]))
	for id := range f.sets[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}
