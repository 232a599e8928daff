package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"callsheet.org/internal/audit"
	"callsheet.org/internal/auth"
	"callsheet.org/internal/production"
	"callsheet.org/internal/ratelimit"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*auth.Account
}

func (m *memAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (m *memAccounts) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	a.PasswordHash = hash
	a.PasswordChangedAt = &changedAt
	return nil
}

func (m *memAccounts) TouchActivity(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	a.LastActivityAt = &at
	return nil
}

type memProjects struct {
	byID map[string]*production.Project
}

func (m *memProjects) Create(ctx context.Context, p *production.Project) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memProjects) FindByID(ctx context.Context, id string) (*production.Project, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, production.ErrNotFound
	}
	return p, nil
}

func (m *memProjects) List(ctx context.Context) ([]*production.Project, error) {
	out := make([]*production.Project, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProjects) Update(ctx context.Context, p *production.Project) error {
	if _, ok := m.byID[p.ID]; !ok {
		return production.ErrNotFound
	}
	m.byID[p.ID] = p
	return nil
}

func (m *memProjects) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return production.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProjects) Stats(ctx context.Context) (production.Stats, error) {
	stats := production.Stats{ByStatus: make(map[production.Status]int)}
	for _, p := range m.byID {
		stats.ByStatus[p.Status]++
		stats.Total++
	}
	return stats, nil
}

type memResources struct {
	byKey map[string]*production.Resource
}

func resourceKey(kind, id string) string { return kind + "/" + id }

func (m *memResources) Create(ctx context.Context, r *production.Resource) error {
	m.byKey[resourceKey(r.Kind, r.ID)] = r
	return nil
}

func (m *memResources) FindByID(ctx context.Context, kind, id string) (*production.Resource, error) {
	r, ok := m.byKey[resourceKey(kind, id)]
	if !ok {
		return nil, production.ErrNotFound
	}
	return r, nil
}

func (m *memResources) ListByProject(ctx context.Context, kind, projectID string) ([]*production.Resource, error) {
	var out []*production.Resource
	for _, r := range m.byKey {
		if r.Kind == kind && r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResources) Update(ctx context.Context, r *production.Resource) error {
	key := resourceKey(r.Kind, r.ID)
	if _, ok := m.byKey[key]; !ok {
		return production.ErrNotFound
	}
	m.byKey[key] = r
	return nil
}

func (m *memResources) Delete(ctx context.Context, kind, id string) error {
	key := resourceKey(kind, id)
	if _, ok := m.byKey[key]; !ok {
		return production.ErrNotFound
	}
	delete(m.byKey, key)
	return nil
}

// testEnv bundles an API over in-memory stores with a controllable clock.
type testEnv struct {
	api       *API
	tokens    *auth.TokenService
	accounts  *memAccounts
	projects  *memProjects
	resources *memResources
	now       *time.Time
}

func newTestEnv(t *testing.T, limiterOpts ...ratelimit.Option) *testEnv {
	t.Helper()
	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	tokens, err := auth.NewTokenService("test-secret", auth.WithClock(clock))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	changed := current.Add(-24 * time.Hour)
	hash, err := auth.HashPassword("gaffer-tape")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	accounts := &memAccounts{byID: map[string]*auth.Account{
		"u1": {ID: "u1", Email: "u1@set.example", Role: auth.RoleMember, PasswordHash: hash, Active: true, PasswordChangedAt: &changed},
		"u2": {ID: "u2", Email: "u2@set.example", Role: auth.RoleMember, Active: true},
		"u3": {ID: "u3", Email: "u3@set.example", Role: auth.RoleMember, Active: true},
		"p1": {ID: "p1", Email: "producer@set.example", Role: auth.RoleProducer, Active: true},
		"a1": {ID: "a1", Email: "admin@set.example", Role: auth.RoleAdmin, Active: true},
		"d1": {ID: "d1", Email: "gone@set.example", Role: auth.RoleMember, Active: false},
	}}
	projects := &memProjects{byID: map[string]*production.Project{
		"proj-1": {
			ID: "proj-1", Title: "Night Shoot", Status: production.StatusProduction,
			Owner: "u2", CreatedBy: "u2",
			Members: map[string]auth.Tier{"u3": auth.TierRead},
		},
	}}
	resources := &memResources{byKey: map[string]*production.Resource{
		"budget/r1": {ID: "r1", Kind: production.KindBudget, ProjectID: "proj-1", Title: "Location budget", Owner: "u2"},
	}}

	limiterOpts = append([]ratelimit.Option{ratelimit.WithClock(clock)}, limiterOpts...)
	limiter := ratelimit.New(limiterOpts...)
	t.Cleanup(limiter.Close)

	recorder := audit.NewRecorder(accounts, audit.WithClock(clock))

	api := New(Config{
		Tokens:    tokens,
		Accounts:  accounts,
		Projects:  projects,
		Resources: resources,
		Limiter:   limiter,
		Recorder:  recorder,
		Version:   "test",
		Env:       "test",
		IPRate:    1000,
		IPBurst:   1000,
	})
	t.Cleanup(api.Close)

	return &testEnv{
		api:       api,
		tokens:    tokens,
		accounts:  accounts,
		projects:  projects,
		resources: resources,
		now:       &current,
	}
}

func (e *testEnv) tokenFor(t *testing.T, accountID string) string {
	t.Helper()
	e.accounts.mu.Lock()
	account := e.accounts.byID[accountID]
	e.accounts.mu.Unlock()
	token, _, err := e.tokens.Issue(account.ID, account.Role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func newRecordedRequest(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:50000"
	return req, httptest.NewRecorder()
}
