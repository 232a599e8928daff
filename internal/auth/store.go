package auth

import (
	"context"
	"time"
)

// AccountStore describes the persistence operations the access-control
// core needs. The storage layer owns the records; this core only reads
// them plus one narrow write (activity touch).
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
}
