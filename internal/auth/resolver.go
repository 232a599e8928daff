package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Resolver loads the account behind a verified credential and checks
// liveness and freshness. It performs no context population itself;
// attaching the identity to the request is the caller's job.
type Resolver struct {
	accounts AccountStore
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(accounts AccountStore) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve returns the live account named by the credential.
//
// A credential issued at or before the account's last password change is
// stale: the boundary case forces re-authentication exactly when the
// password changes.
func (r *Resolver) Resolve(ctx context.Context, identityID string, issuedAt time.Time) (*Account, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, ErrAccountNotFound
	}
	account, err := r.accounts.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.Active {
		return nil, ErrAccountDeactivated
	}
	if account.PasswordChangedAt != nil && !issuedAt.After(*account.PasswordChangedAt) {
		return nil, ErrStaleCredential
	}
	return account, nil
}
