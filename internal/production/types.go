// Package production holds the film-production domain entities the
// access-control layer inspects: projects with collaborator grants and
// the project-scoped resources (budgets, schedules, storyboards).
package production

import (
	"errors"
	"strings"
	"time"

	"callsheet.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("production: not found")
	ErrInvalidInput = errors.New("production: invalid input")
)

// Status is a project's position in the production lifecycle.
type Status string

const (
	StatusPlanning       Status = "planning"
	StatusPreProduction  Status = "pre-production"
	StatusProduction     Status = "production"
	StatusPostProduction Status = "post-production"
	StatusWrapped        Status = "wrapped"
)

// KnownStatuses lists every accepted project status.
var KnownStatuses = []Status{
	StatusPlanning,
	StatusPreProduction,
	StatusProduction,
	StatusPostProduction,
	StatusWrapped,
}

// ParseStatus validates a stored or submitted status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", ErrInvalidInput
}

// Project is the container entity. Collaborator access tiers live on
// the project itself; the owner holds the owner tier implicitly.
type Project struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Status    Status               `json:"status"`
	Owner     string               `json:"owner_id"`
	CreatedBy string               `json:"created_by_id"`
	Members   map[string]auth.Tier `json:"-"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (p *Project) OwnerID() string     { return p.Owner }
func (p *Project) CreatedByID() string { return p.CreatedBy }

// GrantFor resolves the access tier held by an identity on this project.
func (p *Project) GrantFor(identityID string) (auth.Tier, bool) {
	if identityID == "" {
		return auth.TierNone, false
	}
	if identityID == p.Owner {
		return auth.TierOwner, true
	}
	tier, ok := p.Members[identityID]
	if !ok || tier == auth.TierNone {
		return auth.TierNone, false
	}
	return tier, true
}

// Resource kinds the service manages under a project.
const (
	KindBudget     = "budget"
	KindSchedule   = "schedule"
	KindStoryboard = "storyboard"
)

// KnownKind reports whether the kind names a managed resource type.
func KnownKind(kind string) bool {
	switch kind {
	case KindBudget, KindSchedule, KindStoryboard:
		return true
	}
	return false
}

// Resource is a project-scoped entity gated by ownership. Some legacy
// records carry only a creator attribution; the explicit owner field,
// when set, takes precedence.
type Resource struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner_id,omitempty"`
	CreatedBy string    `json:"created_by_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Resource) OwnerID() string     { return r.Owner }
func (r *Resource) CreatedByID() string { return r.CreatedBy }

// Stats aggregates project counts by lifecycle status.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// Active counts projects currently in flight: those in production plus
// those in pre-production.
func (s Stats) Active() int {
	return s.ByStatus[StatusProduction] + s.ByStatus[StatusPreProduction]
}
