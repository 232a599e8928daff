// Package pg implements the account, project and resource stores over
// Postgres. It uses database/sql with the pgx stdlib driver, matching
// the rest of the service's storage plumbing.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/production"
)

// Store owns the shared connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Accounts returns the account store view.
func (s *Store) Accounts() *Accounts { return &Accounts{db: s.db} }

// Projects returns the project store view.
func (s *Store) Projects() *Projects { return &Projects{db: s.db} }

// Resources returns the resource store view.
func (s *Store) Resources() *Resources { return &Resources{db: s.db} }

// Accounts implements auth.AccountStore.
type Accounts struct {
	db *sql.DB
}

var _ auth.AccountStore = (*Accounts)(nil)

const accountColumns = `id, email, name, role, password_hash, active, password_changed_at, last_activity_at, created_at, updated_at`

func scanAccount(row *sql.Row) (*auth.Account, error) {
	var a auth.Account
	var name sql.NullString
	var changed, activity sql.NullTime
	err := row.Scan(&a.ID, &a.Email, &name, &a.Role, &a.PasswordHash, &a.Active,
		&changed, &activity, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Name = name.String
	if changed.Valid {
		t := changed.Time.UTC()
		a.PasswordChangedAt = &t
	}
	if activity.Valid {
		t := activity.Time.UTC()
		a.LastActivityAt = &t
	}
	return &a, nil
}

func (s *Accounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id)
	return scanAccount(row)
}

func (s *Accounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where lower(email) = lower($1)`, email)
	return scanAccount(row)
}

func (s *Accounts) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts
		set password_hash = $2, password_changed_at = $3, updated_at = $3
		where id = $1
	`, id, passwordHash, changedAt.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, auth.ErrAccountNotFound)
}

func (s *Accounts) TouchActivity(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `update accounts set last_activity_at = $2 where id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, auth.ErrAccountNotFound)
}

// Projects implements production.ProjectStore.
type Projects struct {
	db *sql.DB
}

var _ production.ProjectStore = (*Projects)(nil)

func (s *Projects) Create(ctx context.Context, p *production.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into projects(id, title, status, owner_id, created_by_id, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
	`, p.ID, p.Title, string(p.Status), p.Owner, p.CreatedBy, p.CreatedAt.UTC()); err != nil {
		return err
	}
	for accountID, tier := range p.Members {
		if _, err := tx.ExecContext(ctx, `
			insert into project_members(project_id, account_id, tier) values ($1, $2, $3)
		`, p.ID, accountID, tier.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Projects) FindByID(ctx context.Context, id string) (*production.Project, error) {
	var p production.Project
	var status string
	err := s.db.QueryRowContext(ctx, `
		select id, title, status, owner_id, created_by_id, created_at, updated_at
		from projects where id = $1
	`, id).Scan(&p.ID, &p.Title, &status, &p.Owner, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, production.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = production.Status(status)

	rows, err := s.db.QueryContext(ctx, `select account_id, tier from project_members where project_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Members = make(map[string]auth.Tier)
	for rows.Next() {
		var accountID, tier string
		if err := rows.Scan(&accountID, &tier); err != nil {
			return nil, err
		}
		p.Members[accountID] = auth.ParseTier(tier)
	}
	return &p, rows.Err()
}

func (s *Projects) List(ctx context.Context) ([]*production.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, status, owner_id, created_by_id, created_at, updated_at
		from projects order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*production.Project
	for rows.Next() {
		var p production.Project
		var status string
		if err := rows.Scan(&p.ID, &p.Title, &status, &p.Owner, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = production.Status(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Projects) Update(ctx context.Context, p *production.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update projects set title = $2, status = $3, owner_id = $4, updated_at = $5
		where id = $1
	`, p.ID, p.Title, string(p.Status), p.Owner, p.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if err := requireRow(res, production.ErrNotFound); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from project_members where project_id = $1`, p.ID); err != nil {
		return err
	}
	for accountID, tier := range p.Members {
		if _, err := tx.ExecContext(ctx, `
			insert into project_members(project_id, account_id, tier) values ($1, $2, $3)
		`, p.ID, accountID, tier.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Projects) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, production.ErrNotFound)
}

func (s *Projects) Stats(ctx context.Context) (production.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `select status, count(*) from projects group by status`)
	if err != nil {
		return production.Stats{}, err
	}
	defer rows.Close()

	stats := production.Stats{ByStatus: make(map[production.Status]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return production.Stats{}, err
		}
		stats.ByStatus[production.Status(status)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// Resources implements production.ResourceStore.
type Resources struct {
	db *sql.DB
}

var _ production.ResourceStore = (*Resources)(nil)

func scanResource(scan func(...any) error) (*production.Resource, error) {
	var r production.Resource
	var owner, createdBy sql.NullString
	err := scan(&r.ID, &r.Kind, &r.ProjectID, &r.Title, &owner, &createdBy, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, production.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Owner = owner.String
	r.CreatedBy = createdBy.String
	return &r, nil
}

func (s *Resources) Create(ctx context.Context, r *production.Resource) error {
	_, err := s.db.ExecContext(ctx, `
		insert into resources(id, kind, project_id, title, owner_id, created_by_id, created_at, updated_at)
		values ($1, $2, $3, $4, nullif($5, ''), nullif($6, ''), $7, $7)
	`, r.ID, r.Kind, r.ProjectID, r.Title, r.Owner, r.CreatedBy, r.CreatedAt.UTC())
	return err
}

func (s *Resources) FindByID(ctx context.Context, kind, id string) (*production.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, kind, project_id, title, owner_id, created_by_id, created_at, updated_at
		from resources where kind = $1 and id = $2
	`, kind, id)
	return scanResource(row.Scan)
}

func (s *Resources) ListByProject(ctx context.Context, kind, projectID string) ([]*production.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, kind, project_id, title, owner_id, created_by_id, created_at, updated_at
		from resources where kind = $1 and project_id = $2 order by created_at desc
	`, kind, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*production.Resource
	for rows.Next() {
		r, err := scanResource(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Resources) Update(ctx context.Context, r *production.Resource) error {
	res, err := s.db.ExecContext(ctx, `
		update resources set title = $3, updated_at = $4
		where kind = $1 and id = $2
	`, r.Kind, r.ID, r.Title, r.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, production.ErrNotFound)
}

func (s *Resources) Delete(ctx context.Context, kind, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from resources where kind = $1 and id = $2`, kind, id)
	if err != nil {
		return err
	}
	return requireRow(res, production.ErrNotFound)
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
