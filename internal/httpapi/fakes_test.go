// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package httpapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/internal/auth"
	"github.com/prairiepost/prairiepost/internal/chat"
)

// plainHasher stores passwords with a visible prefix so tests stay fast and
// can assert the plaintext never leaks into responses.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain:"+password, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[ulid.ULID]*auth.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return oops.Code("CONFLICT").
				With("username", user.Username).
				Errorf("duplicate user")
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memUserRepo) UpdateLockout(_ context.Context, id ulid.ULID, failedLoginCount int, lockoutUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.FailedLoginCount = failedLoginCount
	u.LockoutUntil = lockoutUntil
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*auth.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.TokenHash] = &cp
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.sessions, tokenHash)
	return nil
}

func (r *memSessionRepo) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, hash)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for hash, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*auth.LoginAttempt
}

func (r *memAttemptRepo) Record(_ context.Context, username, ipAddress string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, &auth.LoginAttempt{
		ID:        int64(len(r.attempts) + 1),
		Username:  username,
		IPAddress: ipAddress,
		Success:   success,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *memAttemptRepo) RecentByUsername(_ context.Context, username string, limit int) ([]*auth.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auth.LoginAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.EqualFold(r.attempts[i].Username, username) {
			out = append(out, r.attempts[i])
		}
	}
	return out, nil
}

// memMessageRepo assigns sequential ids the way the database sequence would
// and snapshots the author profile at write time via the user repo.
type memMessageRepo struct {
	mu     sync.Mutex
	users  *memUserRepo
	nextID int64
	msgs   []*chat.Message
}

func (r *memMessageRepo) Create(ctx context.Context, userID ulid.ULID, content string) (*chat.Message, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg := &chat.Message{
		ID:        r.nextID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
		Author: chat.Author{
			ID:            userID.String(),
			DisplayName:   user.DisplayName,
			ProfileColor:  user.ProfileColor,
			ProfileAvatar: user.ProfileAvatar,
		},
	}
	r.msgs = append(r.msgs, msg)
	return msg, nil
}

func (r *memMessageRepo) History(_ context.Context, beforeID int64, limit int) ([]*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for i := len(r.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if beforeID == 0 || r.msgs[i].ID < beforeID {
			out = append(out, r.msgs[i])
		}
	}
	return out, nil
}
