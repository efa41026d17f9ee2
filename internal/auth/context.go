// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import "context"

// identityKey is the context key for the resolved request identity.
type identityKey struct{}

// ContextWithIdentity returns a context carrying the identity.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored in the context, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
