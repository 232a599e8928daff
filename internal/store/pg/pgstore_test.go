package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/production"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestAccountsFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	changed := created.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "email", "name", "role", "password_hash", "active",
		"password_changed_at", "last_activity_at", "created_at", "updated_at",
	}).AddRow("acct-1", "dp@set.example", "Sam Ardit", "producer", "hash", true,
		changed, nil, created, created)
	mock.ExpectQuery("select id, email, name, role, password_hash, active.*from accounts where id").
		WithArgs("acct-1").WillReturnRows(rows)

	account, err := store.Accounts().FindByID(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if account.Role != "producer" || !account.Active {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.PasswordChangedAt == nil || !account.PasswordChangedAt.Equal(changed) {
		t.Fatalf("password change timestamp lost: %+v", account.PasswordChangedAt)
	}
	if account.LastActivityAt != nil {
		t.Fatalf("expected nil last activity, got %v", account.LastActivityAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountsFindByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select id, email, name, role, password_hash, active.*from accounts where id").
		WithArgs("ghost").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Accounts().FindByID(context.Background(), "ghost")
	if !errors.Is(err, auth.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountsTouchActivity(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("update accounts set last_activity_at").
		WithArgs("acct-1", at).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Accounts().TouchActivity(context.Background(), "acct-1", at); err != nil {
		t.Fatalf("TouchActivity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProjectsFindByIDLoadsGrants(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, title, status, owner_id, created_by_id.*from projects where id").
		WithArgs("p1").WillReturnRows(sqlmock.NewRows([]string{
		"id", "title", "status", "owner_id", "created_by_id", "created_at", "updated_at",
	}).AddRow("p1", "Night Shoot", "production", "u2", "u1", created, created))
	mock.ExpectQuery("select account_id, tier from project_members").
		WithArgs("p1").WillReturnRows(sqlmock.NewRows([]string{"account_id", "tier"}).
		AddRow("u3", "read").AddRow("u4", "write"))

	p, err := store.Projects().FindByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p.Status != production.StatusProduction {
		t.Fatalf("unexpected status: %s", p.Status)
	}
	if tier, ok := p.GrantFor("u3"); !ok || tier != auth.TierRead {
		t.Fatalf("read grant lost: %v ok=%v", tier, ok)
	}
	if tier, ok := p.GrantFor("u2"); !ok || tier != auth.TierOwner {
		t.Fatalf("owner tier missing: %v ok=%v", tier, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProjectsStats(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select status, count").WillReturnRows(
		sqlmock.NewRows([]string{"status", "count"}).
			AddRow("production", 4).
			AddRow("pre-production", 2).
			AddRow("wrapped", 1))

	stats, err := store.Projects().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 7 {
		t.Fatalf("total=%d, want 7", stats.Total)
	}
	if stats.Active() != 6 {
		t.Fatalf("active=%d, want 6", stats.Active())
	}
}

func TestResourcesDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from resources").
		WithArgs("budget", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Resources().Delete(context.Background(), "budget", "missing")
	if !errors.Is(err, production.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
