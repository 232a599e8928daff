package auth

import "fmt"

// Decision is the transient outcome of one access check. It is never
// stored; the pipeline translates a deny into an HTTP response and
// moves on.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(err error, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Err: err}
}

// AllowIfRoleIn permits the account when its role is in the given set.
// A nil account means the route required authentication that never
// happened, which is reported before any membership test.
func AllowIfRoleIn(account *Account, roles ...string) Decision {
	if account == nil {
		return deny(ErrUnauthenticated, "authentication required")
	}
	if !account.HasRole(roles...) {
		return deny(ErrInsufficientRole, fmt.Sprintf("role %q is not permitted", account.Role))
	}
	return allow()
}

// AllowIfOwnerOrRole permits the account when it owns the resource or
// holds one of the admin roles. Ownership resolves through exactly one
// attribution path: the explicit owner field wins over the creator.
func AllowIfOwnerOrRole(account *Account, res Owned, adminRoles ...string) Decision {
	if account == nil {
		return deny(ErrUnauthenticated, "authentication required")
	}
	if res == nil {
		return deny(ErrResourceNotFound, "resource not found")
	}
	if account.HasRole(adminRoles...) {
		return allow()
	}
	owner := res.OwnerID()
	if owner == "" {
		owner = res.CreatedByID()
	}
	if owner == "" || owner != account.ID {
		return deny(ErrAccessDenied, "not the resource owner")
	}
	return allow()
}

// AllowIfTier permits the account when the project grants it at least
// the required tier. Admin bypasses the grant map entirely.
func AllowIfTier(account *Account, project Granting, required Tier) Decision {
	if account == nil {
		return deny(ErrUnauthenticated, "authentication required")
	}
	if project == nil {
		return deny(ErrResourceNotFound, "project not found")
	}
	if account.HasRole(RoleAdmin) {
		return allow()
	}
	held, ok := project.GrantFor(account.ID)
	if !ok || !held.Covers(required) {
		return deny(ErrAccessDenied, fmt.Sprintf("requires %s access", required))
	}
	return allow()
}
