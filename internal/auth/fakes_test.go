// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[ulid.ULID]*User

	createErr error
	getErr    error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[ulid.ULID]*User)}
}

func (f *fakeUserRepo) add(u *User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeUserRepo) get(id ulid.ULID) *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return oops.Code("CONFLICT").Errorf("username or email already in use")
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id ulid.ULID) (*User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUserRepo) UpdateLockout(_ context.Context, id ulid.ULID, failedLoginCount int, lockoutUntil *time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FailedLoginCount = failedLoginCount
	u.LockoutUntil = lockoutUntil
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// fakeSessionRepo is an in-memory SessionRepository keyed by token hash.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session

	createErr error
	getErr    error
	deleteErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*Session)}
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeSessionRepo) Create(_ context.Context, session *Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.sessions[session.TokenHash] = &cp
	return nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[tokenHash]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[tokenHash]; !ok {
		return ErrNotFound
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionRepo) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var n int64
	for hash, s := range f.sessions {
		if s.IsExpiredAt(now) {
			delete(f.sessions, hash)
			n++
		}
	}
	return n, nil
}

// fakeAttemptRepo records login attempts in memory, newest last.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*LoginAttempt

	recordErr error
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{}
}

func (f *fakeAttemptRepo) all() []*LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*LoginAttempt, len(f.attempts))
	copy(out, f.attempts)
	return out
}

func (f *fakeAttemptRepo) Record(_ context.Context, username, ipAddress string, success bool) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, &LoginAttempt{
		ID:        int64(len(f.attempts) + 1),
		Username:  username,
		IPAddress: ipAddress,
		Success:   success,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeAttemptRepo) RecentByUsername(_ context.Context, username string, limit int) ([]*LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*LoginAttempt
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.EqualFold(f.attempts[i].Username, username) {
			out = append(out, f.attempts[i])
		}
	}
	return out, nil
}
