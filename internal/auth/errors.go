// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import "errors"

// ErrNotFound is the sentinel for lookups that matched nothing. Repositories
// return it wrapped in an oops error so callers can branch with errors.Is.
var ErrNotFound = errors.New("not found")
