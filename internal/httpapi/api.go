// Package httpapi assembles the access-control pipeline in front of
// every protected route. Stages run strictly in order — credential
// verification, identity resolution, access decision, rate limiting,
// activity recording — and the first failure short-circuits into the
// uniform JSON error envelope.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"callsheet.org/internal/audit"
	"callsheet.org/internal/auth"
	"callsheet.org/internal/obs"
	"callsheet.org/internal/production"
	"callsheet.org/internal/ratelimit"
)

const envProduction = "production"

// ReadyProbe verifies the service can reach its dependencies.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the collaborators and deployment knobs for the API.
type Config struct {
	Tokens    *auth.TokenService
	Accounts  auth.AccountStore
	Projects  production.ProjectStore
	Resources production.ResourceStore
	Limiter   *ratelimit.Limiter
	Recorder  *audit.Recorder
	Probe     ReadyProbe
	Version   string
	Env       string

	// Damping for unauthenticated traffic, requests per second per IP.
	IPRate  rate.Limit
	IPBurst int

	CORSOrigins []string
}

// API is the HTTP layer.
type API struct {
	mux       *http.ServeMux
	tokens    *auth.TokenService
	resolver  *auth.Resolver
	accounts  auth.AccountStore
	projects  production.ProjectStore
	resources production.ResourceStore
	limiter   *ratelimit.Limiter
	recorder  *audit.Recorder
	probe     ReadyProbe
	damper    *ipDamper
	version   string
	env       string
	cors      []string
}

// New wires the route table. Every protected route declares its own
// ordered stage list.
func New(cfg Config) *API {
	a := &API{
		mux:       http.NewServeMux(),
		tokens:    cfg.Tokens,
		resolver:  auth.NewResolver(cfg.Accounts),
		accounts:  cfg.Accounts,
		projects:  cfg.Projects,
		resources: cfg.Resources,
		limiter:   cfg.Limiter,
		recorder:  cfg.Recorder,
		probe:     cfg.Probe,
		version:   cfg.Version,
		env:       cfg.Env,
		cors:      cfg.CORSOrigins,
	}
	if a.limiter == nil {
		a.limiter = ratelimit.New()
	}
	if a.recorder == nil {
		a.recorder = audit.NewRecorder(cfg.Accounts)
	}
	ipRate := cfg.IPRate
	if ipRate <= 0 {
		ipRate = 20
	}
	ipBurst := cfg.IPBurst
	if ipBurst <= 0 {
		ipBurst = 40
	}
	a.damper = newIPDamper(ipRate, ipBurst)

	a.routes()
	return a
}

func (a *API) routes() {
	mux := a.mux

	// Operational surface, unauthenticated.
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.Handle("GET /v1/info", compose(http.HandlerFunc(a.handleInfo), a.optionalAuth))
	mux.Handle("GET /metrics", obs.Handler())

	// Authentication surface.
	mux.Handle("POST /v1/auth/login", http.HandlerFunc(a.handleLogin))
	mux.Handle("POST /v1/auth/password", compose(
		http.HandlerFunc(a.handlePasswordChange),
		a.requireAuth, a.throttle, a.record("auth.password_change"),
	))
	mux.Handle("GET /v1/auth/me", compose(
		http.HandlerFunc(a.handleMe),
		a.requireAuth, a.throttle,
	))

	// Projects.
	mux.Handle("GET /v1/projects", compose(
		http.HandlerFunc(a.handleProjectList),
		a.requireAuth, a.throttle, a.record("project.list"),
	))
	mux.Handle("POST /v1/projects", compose(
		http.HandlerFunc(a.handleProjectCreate),
		a.requireAuth, a.requireRole(auth.RoleProducer, auth.RoleAdmin),
		a.throttle, a.record("project.create"),
	))
	mux.Handle("GET /v1/projects/stats", compose(
		http.HandlerFunc(a.handleProjectStats),
		a.requireAuth, a.throttle, a.record("project.stats"),
	))
	mux.Handle("GET /v1/projects/{id}", compose(
		http.HandlerFunc(a.handleProjectGet),
		a.requireAuth, a.requireProjectTier(auth.TierRead),
		a.throttle, a.record("project.get"),
	))
	mux.Handle("PATCH /v1/projects/{id}", compose(
		http.HandlerFunc(a.handleProjectUpdate),
		a.requireAuth, a.requireProjectTier(auth.TierWrite),
		a.throttle, a.record("project.update"),
	))
	mux.Handle("DELETE /v1/projects/{id}", compose(
		http.HandlerFunc(a.handleProjectDelete),
		a.requireAuth, a.requireProjectOwner,
		a.throttle, a.record("project.delete"),
	))
	mux.Handle("PUT /v1/projects/{id}/members", compose(
		http.HandlerFunc(a.handleProjectMemberSet),
		a.requireAuth, a.requireProjectOwner,
		a.throttle, a.record("project.member_set"),
	))
	mux.Handle("POST /v1/projects/{id}/resources", compose(
		http.HandlerFunc(a.handleResourceCreate),
		a.requireAuth, a.requireProjectTier(auth.TierWrite),
		a.throttle, a.record("resource.create"),
	))
	mux.Handle("GET /v1/projects/{id}/resources/{kind}", compose(
		http.HandlerFunc(a.handleResourceList),
		a.requireAuth, a.requireProjectTier(auth.TierRead),
		a.throttle, a.record("resource.list"),
	))

	// Project-scoped resources addressed directly, ownership gated for
	// mutation.
	mux.Handle("GET /v1/resources/{kind}/{id}", compose(
		http.HandlerFunc(a.handleResourceGet),
		a.requireAuth, a.throttle, a.record("resource.get"),
	))
	mux.Handle("PATCH /v1/resources/{kind}/{id}", compose(
		http.HandlerFunc(a.handleResourceUpdate),
		a.requireAuth, a.requireResourceOwner,
		a.throttle, a.record("resource.update"),
	))
	mux.Handle("DELETE /v1/resources/{kind}/{id}", compose(
		http.HandlerFunc(a.handleResourceDelete),
		a.requireAuth, a.requireResourceOwner,
		a.throttle, a.record("resource.delete"),
	))
}

// Handler returns the fully wrapped server handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.damper.middleware(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.cors)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = a.Recover(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// Close releases background components owned by the API.
func (a *API) Close() {
	a.limiter.Close()
	a.recorder.Flush()
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "callsheet-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleInfo is reachable unauthenticated; a valid credential merely
// personalizes the response.
func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"name":    "callsheet-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	}
	if account, ok := auth.AccountFromContext(r.Context()); ok {
		payload["identity_id"] = account.ID
	}
	writeJSON(w, http.StatusOK, payload)
}
