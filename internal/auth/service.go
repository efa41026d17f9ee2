// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/pkg/errutil"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// MetricsRecorder receives auth events for instrumentation. Implementations
// must be safe for concurrent use. Login outcomes are "success", "failure",
// or "locked".
type MetricsRecorder interface {
	RecordLogin(outcome string)
	RecordLockout()
	RecordSessionIssued()
}

// Service provides registration, login, logout, and password change.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	attempts LoginAttemptRepository
	hasher   PasswordHasher
	policy   LockoutPolicy
	ttl      time.Duration
	logger   *slog.Logger
	metrics  MetricsRecorder
	now      func() time.Time
}

// NewService creates a new Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(users UserRepository, sessions SessionRepository, attempts LoginAttemptRepository, hasher PasswordHasher, policy LockoutPolicy, sessionTTL time.Duration) (*Service, error) {
	return NewServiceWithLogger(users, sessions, attempts, hasher, policy, sessionTTL, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
// Returns an error if any required dependency is nil.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, attempts LoginAttemptRepository, hasher PasswordHasher, policy LockoutPolicy, sessionTTL time.Duration, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if attempts == nil {
		return nil, oops.Errorf("attempts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if policy.MaxFails < 1 || policy.LockDuration <= 0 {
		return nil, oops.Errorf("lockout policy is invalid")
	}
	if sessionTTL <= 0 {
		return nil, oops.Errorf("session TTL must be positive")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		attempts: attempts,
		hasher:   hasher,
		policy:   policy,
		ttl:      sessionTTL,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetMetrics attaches a metrics recorder. Must be called before the service
// handles requests; a nil recorder leaves instrumentation off.
func (s *Service) SetMetrics(metrics MetricsRecorder) {
	s.metrics = metrics
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

// RegisterInput carries the raw registration form fields.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
	DisplayName     string
}

// normalize trims the identity fields. Passwords are never altered.
func (in RegisterInput) normalize() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	return in
}

// validate collects every violated format rule. Uniqueness is checked
// separately, after format validation passes, to avoid store round-trips on
// malformed input.
func (in RegisterInput) validate() []string {
	var errs []string

	if in.Username == "" {
		errs = append(errs, "Username is required.")
	}
	if in.Password == "" {
		errs = append(errs, "Password is required.")
	}
	if in.Email == "" {
		errs = append(errs, "Email is required.")
	}
	if in.DisplayName == "" {
		errs = append(errs, "Display name is required.")
	}

	if in.Email != "" && !ValidateEmail(in.Email) {
		errs = append(errs, "Please enter a valid email address.")
	}
	if in.DisplayName != "" && !ValidateDisplayName(in.DisplayName) {
		errs = append(errs, "Display name must be 3-30 characters and use letters/numbers/spaces/_-.")
	}
	if in.Username != "" && in.DisplayName != "" && strings.EqualFold(in.Username, in.DisplayName) {
		errs = append(errs, "Display name must be different from username.")
	}

	if in.Password != "" {
		errs = append(errs, PasswordIssues(in.Password, in.Username)...)
	}
	if in.Password != in.ConfirmPassword {
		errs = append(errs, "Passwords must match.")
	}

	return errs
}

// Register creates a new user and issues a session.
// All format violations are collected into a single AUTH_VALIDATION error;
// uniqueness violations surface as CONFLICT. No user row is created unless
// every check passes.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, *Session, string, error) {
	in := input.normalize()

	if errs := in.validate(); len(errs) > 0 {
		return nil, nil, "", oops.Code("AUTH_VALIDATION").
			With("errors", errs).
			Errorf("registration input is invalid")
	}

	var conflicts []string
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		conflicts = append(conflicts, "That username is already taken.")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check username uniqueness").
			Wrap(err)
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		conflicts = append(conflicts, "That email is already registered.")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email uniqueness").
			Wrap(err)
	}
	if len(conflicts) > 0 {
		return nil, nil, "", oops.Code("CONFLICT").
			With("errors", conflicts).
			Errorf("username or email already in use")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := NewUser(in.Username, in.Email, passwordHash, in.DisplayName)
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration may win the race after the uniqueness
		// read; the repository maps unique violations to CONFLICT.
		return nil, nil, "", err
	}

	session, token, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, nil, "", err
	}
	return user, session, token, nil
}

// Login authenticates a user and creates a session.
// Returns the session, plaintext token, and any error.
// Unknown usernames go through a dummy hash verification so the response
// cost matches a present-but-wrong-password user.
func (s *Service) Login(ctx context.Context, username, password, ipAddress string) (*Session, string, error) {
	now := s.now()

	user, lookupErr := s.users.GetByUsername(ctx, username)
	userExists := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	if userExists && user.IsLocked(now) {
		// Attempts against a locked account are audited but never advance
		// the failure counter.
		s.recordAttempt(ctx, username, ipAddress, false)
		s.recordLogin("locked")
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("lockout_until", user.LockoutUntil).
			Errorf("account is temporarily locked")
	}

	targetHash := dummyPasswordHash
	if userExists {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		s.recordAttempt(ctx, username, ipAddress, false)
		s.recordLogin("failure")
		if userExists {
			user.RecordFailure(s.policy, now)
			if err := s.users.UpdateLockout(ctx, user.ID, user.FailedLoginCount, user.LockoutUntil); err != nil {
				errutil.LogWarn(s.logger, "failed to persist login failure", err)
			}
			// IsLocked was false on entry, so an active expiry here means this
			// failure triggered the lockout.
			if user.IsLocked(now) && s.metrics != nil {
				s.metrics.RecordLockout()
			}
		}
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	s.recordAttempt(ctx, username, ipAddress, true)
	s.recordLogin("success")

	user.RecordSuccess(now)
	if err := s.users.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
		errutil.LogWarn(s.logger, "failed to clear login failures", err)
	}

	return s.issueSession(ctx, user.ID)
}

// Logout deletes the session for the given plaintext token.
// Deleting a token that no longer exists is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// ChangePassword verifies the current password, enforces the strength policy
// on the new one, rehashes, and invalidates every session for the user so all
// devices must log in again.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid user")
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	var errs []string
	if currentPassword == "" {
		errs = append(errs, "Current password is required.")
	}
	if newPassword == "" {
		errs = append(errs, "New password is required.")
	}
	if len(errs) == 0 && currentPassword == newPassword {
		errs = append(errs, "New password cannot be old password.")
	}
	if len(errs) == 0 {
		errs = append(errs, PasswordIssues(newPassword, user.Username)...)
	}
	if len(errs) > 0 {
		return oops.Code("AUTH_VALIDATION").
			With("errors", errs).
			Errorf("password change input is invalid")
	}

	valid, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("current password is incorrect")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password hash").
			Wrap(err)
	}

	// Every existing session dies with the old password. This is a security
	// control, not cleanup: a stolen token must not survive a rotation.
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "invalidate sessions").
			Wrap(err)
	}

	return nil
}

// PruneExpiredSessions removes every session past its expiry and returns the
// number deleted. Expired sessions are already invisible to the resolver;
// pruning keeps the table from accumulating dead rows.
func (s *Service) PruneExpiredSessions(ctx context.Context) (int64, error) {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("AUTH_SESSION_PRUNE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	if deleted > 0 {
		s.logger.Info("pruned expired sessions", "deleted", deleted)
	}
	return deleted, nil
}

// issueSession generates a token and persists a session for the user.
func (s *Service) issueSession(ctx context.Context, userID ulid.ULID) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, s.now().Add(s.ttl))
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionIssued()
	}
	return session, token, nil
}

// recordAttempt appends to the login audit ledger. Ledger failures are logged
// and swallowed so an audit outage cannot block logins.
func (s *Service) recordAttempt(ctx context.Context, username, ipAddress string, success bool) {
	if err := s.attempts.Record(ctx, username, ipAddress, success); err != nil {
		errutil.LogWarn(s.logger, "failed to record login attempt", err)
	}
}
