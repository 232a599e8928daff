package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/obs"
	"callsheet.org/internal/production"
)

// A stage is one step of a route's access-control pipeline. Stages are
// composed outermost-first and each either populates the request
// context for later stages or short-circuits with a response.
type stage func(http.Handler) http.Handler

// compose builds the handler for a route: stages run strictly in the
// order given, then the handler.
func compose(h http.Handler, stages ...stage) http.Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
	}
	return h
}

type projectContextKey struct{}
type resourceContextKey struct{}

// ProjectFromContext returns the project resolved by a guard stage.
func ProjectFromContext(ctx context.Context) (*production.Project, bool) {
	v, ok := ctx.Value(projectContextKey{}).(*production.Project)
	return v, ok && v != nil
}

// ResourceFromContext returns the resource resolved by a guard stage.
func ResourceFromContext(ctx context.Context) (*production.Resource, bool) {
	v, ok := ctx.Value(resourceContextKey{}).(*production.Resource)
	return v, ok && v != nil
}

// requireAuth verifies the credential and resolves the identity behind
// it, attaching both to the context. Any failure ends the request.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.FromRequest(r)
		if err != nil {
			obs.AuthDecision("verify", "deny")
			a.failRequest(w, err)
			return
		}
		claims, err := a.tokens.Verify(raw)
		if err != nil {
			obs.AuthDecision("verify", "deny")
			a.failRequest(w, err)
			return
		}
		account, err := a.resolver.Resolve(r.Context(), claims.IdentityID, claims.IssuedAt)
		if err != nil {
			obs.AuthDecision("resolve", "deny")
			a.failRequest(w, err)
			return
		}
		obs.AuthDecision("resolve", "allow")
		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithAccount(ctx, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches an identity when a valid credential is present
// but never fails the request; on any error the caller proceeds
// unauthenticated.
func (a *API) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.tokens.TryVerify(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		account, err := a.resolver.Resolve(r.Context(), claims.IdentityID, claims.IssuedAt)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithAccount(ctx, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole permits only the listed roles. Admin is not implicitly
// included: a route that wants admin must list it.
func (a *API) requireRole(roles ...string) stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, _ := auth.AccountFromContext(r.Context())
			if d := auth.AllowIfRoleIn(account, roles...); !d.Allowed {
				obs.AuthDecision("role", "deny")
				a.failRequest(w, d.Err)
				return
			}
			obs.AuthDecision("role", "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// requireProjectTier loads the project from the {id} path segment and
// permits the request when the identity holds at least the required
// access tier. The project is attached for the handler.
func (a *API) requireProjectTier(required auth.Tier) stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project, err := a.loadProject(r)
			if err != nil {
				a.failRequest(w, err)
				return
			}
			account, _ := auth.AccountFromContext(r.Context())
			if d := auth.AllowIfTier(account, project, required); !d.Allowed {
				obs.AuthDecision("tier", "deny")
				a.failRequest(w, d.Err)
				return
			}
			obs.AuthDecision("tier", "allow")
			ctx := context.WithValue(r.Context(), projectContextKey{}, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireProjectOwner permits the project owner or an admin.
func (a *API) requireProjectOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		project, err := a.loadProject(r)
		if err != nil {
			a.failRequest(w, err)
			return
		}
		account, _ := auth.AccountFromContext(r.Context())
		if d := auth.AllowIfOwnerOrRole(account, project, auth.RoleAdmin); !d.Allowed {
			obs.AuthDecision("ownership", "deny")
			a.failRequest(w, d.Err)
			return
		}
		obs.AuthDecision("ownership", "allow")
		ctx := context.WithValue(r.Context(), projectContextKey{}, project)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireResourceOwner loads the resource from {kind}/{id} and permits
// its owner or an admin.
func (a *API) requireResourceOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.PathValue("kind")
		if !production.KnownKind(kind) {
			a.failRequest(w, auth.ErrResourceNotFound)
			return
		}
		resource, err := a.resources.FindByID(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			if errors.Is(err, production.ErrNotFound) {
				err = auth.ErrResourceNotFound
			}
			a.failRequest(w, err)
			return
		}
		account, _ := auth.AccountFromContext(r.Context())
		if d := auth.AllowIfOwnerOrRole(account, resource, auth.RoleAdmin); !d.Allowed {
			obs.AuthDecision("ownership", "deny")
			a.failRequest(w, d.Err)
			return
		}
		obs.AuthDecision("ownership", "allow")
		ctx := context.WithValue(r.Context(), resourceContextKey{}, resource)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// throttle applies the per-identity sliding-window budget. Requests
// that reach it without a resolved identity bypass the limiter: it
// protects authenticated traffic only.
func (a *API) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := auth.AccountFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		res := a.limiter.Admit(account.ID)
		if !res.Allowed {
			obs.RateLimited()
			retry := res.RetryAfterSeconds()
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeFailure(w, http.StatusTooManyRequests,
				"rate limit exceeded, slow down", map[string]any{"retryAfter": retry})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// record notes the action against the identity; always best-effort.
func (a *API) record(action string) stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if account, ok := auth.AccountFromContext(r.Context()); ok {
				a.recorder.Record(r.Context(), account.ID, action)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) loadProject(r *http.Request) (*production.Project, error) {
	project, err := a.projects.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, production.ErrNotFound) {
			return nil, auth.ErrResourceNotFound
		}
		return nil, err
	}
	return project, nil
}
