package auth

import (
	"strings"
	"time"
)

// Well-known roles. Routes may require any subset; admin conventionally
// bypasses ownership and project-tier checks but not explicit role lists.
const (
	RoleAdmin    = "admin"
	RoleProducer = "producer"
	RoleMember   = "member"
)

// Account is the persistent identity record the resolver loads per request.
type Account struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	Role              string     `json:"role"`
	PasswordHash      string     `json:"-"`
	Active            bool       `json:"active"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasRole reports whether the account holds one of the given roles.
func (a *Account) HasRole(roles ...string) bool {
	if a == nil {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(a.Role, role) {
			return true
		}
	}
	return false
}

// Tier is a project-scoped access level granted to a collaborator.
type Tier int

const (
	TierNone Tier = iota
	TierRead
	TierWrite
	TierOwner
)

// Covers reports whether the held tier satisfies the required one.
func (t Tier) Covers(required Tier) bool {
	return t >= required && required > TierNone
}

func (t Tier) String() string {
	switch t {
	case TierRead:
		return "read"
	case TierWrite:
		return "write"
	case TierOwner:
		return "owner"
	default:
		return "none"
	}
}

// ParseTier maps the stored representation back to a Tier. Unknown
// values collapse to TierNone so a corrupt grant never widens access.
func ParseTier(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "read":
		return TierRead
	case "write":
		return TierWrite
	case "owner":
		return TierOwner
	default:
		return TierNone
	}
}

// Owned is any domain entity carrying ownership attribution. The
// decision engine resolves exactly one path: an explicit owner wins
// over the creator.
type Owned interface {
	OwnerID() string
	CreatedByID() string
}

// Granting is a project-scoped entity exposing its collaborator grants.
type Granting interface {
	Owned
	GrantFor(identityID string) (Tier, bool)
}
