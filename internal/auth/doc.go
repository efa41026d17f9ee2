// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package auth provides authentication primitives for Prairie Post.
//
// # Domain Types
//
// Domain types (User, Session, LoginAttempt) should be created using their
// respective constructors:
//   - NewUser - creates a User with a fresh id and timestamps
//   - NewSession - creates a Session with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service coordinates registration, login (with failed-attempt lockout),
// logout, and password changes. Resolver performs read-side, best-effort
// identity resolution from a session token; it never gates access by itself.
package auth
