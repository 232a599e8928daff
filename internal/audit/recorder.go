// Package audit records which identity performed which action. All of
// it is best effort: a failure here is swallowed and must never fail
// the request being recorded.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for
// audit correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ActivityStore is the narrow write the recorder performs against the
// account store.
type ActivityStore interface {
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// Recorder writes audit lines and opportunistically updates the
// account's last-activity timestamp.
type Recorder struct {
	accounts ActivityStore
	log      *log.Logger
	now      func() time.Time
	timeout  time.Duration

	wg sync.WaitGroup
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger overrides the audit output logger.
func WithLogger(l *log.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder. The store may be nil, in which
// case only audit lines are written.
func NewRecorder(accounts ActivityStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		accounts: accounts,
		log:      obs.Logger(),
		now:      time.Now,
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record notes that the identity performed the action. The write and
// the activity touch run detached from the request with their own
// timeout; any failure is swallowed.
func (r *Recorder) Record(ctx context.Context, identityID, action string) {
	identityID = strings.TrimSpace(identityID)
	action = strings.TrimSpace(action)
	if identityID == "" || action == "" {
		return
	}
	requestID := RequestIDFromContext(ctx)
	at := r.now().UTC()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.emit(at, identityID, action, requestID, nil)
		if r.accounts == nil {
			return
		}
		touchCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		// Errors are deliberately dropped: the request already moved on.
		_ = r.accounts.TouchActivity(touchCtx, identityID, at)
	}()
}

// Event writes a synchronous audit line for handler-level events such
// as logins. It never returns an error to the caller.
func (r *Recorder) Event(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	identityID := ""
	if account, ok := auth.AccountFromContext(ctx); ok {
		identityID = account.ID
	} else if claims, ok := auth.ClaimsFromContext(ctx); ok {
		identityID = claims.IdentityID
	}
	r.emit(r.now().UTC(), identityID, event, RequestIDFromContext(ctx), fields)
}

// Flush waits for in-flight detached records; intended for tests and
// shutdown.
func (r *Recorder) Flush() {
	r.wg.Wait()
}

func (r *Recorder) emit(at time.Time, identityID, event, requestID string, fields map[string]any) {
	entry := map[string]any{
		"ts":    at.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if identityID != "" {
		entry["identity_id"] = identityID
	}
	if requestID != "" {
		entry["request_id"] = requestID
	}
	if len(fields) > 0 {
		entry["fields"] = fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	r.log.Println(string(data))
}
