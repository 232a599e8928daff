package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T, now time.Time, opts ...TokenOption) *TokenService {
	t.Helper()
	opts = append([]TokenOption{WithClock(func() time.Time { return now })}, opts...)
	svc, err := NewTokenService("test-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, now, WithIssuer("test-issuer"), WithTTL(30*time.Minute))

	token, expiresAt, err := svc.Issue("acct-42", "Producer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.IdentityID != "acct-42" {
		t.Fatalf("unexpected identity: %s", claims.IdentityID)
	}
	if claims.Role != "producer" {
		t.Fatalf("role was not normalized: %s", claims.Role)
	}
	if !claims.IssuedAt.Equal(now.Truncate(time.Second)) {
		t.Fatalf("unexpected issued-at: %v", claims.IssuedAt)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, issued, WithTTL(time.Minute))

	token, _, err := svc.Issue("acct-1", RoleMember)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := newTestTokenService(t, issued.Add(2*time.Minute))
	if _, err := later.Verify(token); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, now)
	other, err := NewTokenService("other-secret", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _, err := other.Issue("acct-1", RoleMember)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(token); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuerA := newTestTokenService(t, now, WithIssuer("service-a"))
	issuerB := newTestTokenService(t, now, WithIssuer("service-b"))

	token, _, err := issuerA.Issue("acct-1", RoleMember)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuerB.Verify(token); err != ErrInvalidCredential {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestVerifyEmptyToken(t *testing.T) {
	svc := newTestTokenService(t, time.Now())
	if _, err := svc.Verify("  "); err != ErrMissingCredential {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		cookie  string
		want    string
		wantErr error
	}{
		{name: "header", header: "Bearer abc", want: "abc"},
		{name: "header wins over cookie", header: "Bearer abc", cookie: "xyz", want: "abc"},
		{name: "cookie fallback", cookie: "xyz", want: "xyz"},
		{name: "missing both", wantErr: ErrMissingCredential},
		{name: "wrong scheme", header: "Basic abc", wantErr: ErrInvalidCredential},
		{name: "empty bearer", header: "Bearer   ", wantErr: ErrMissingCredential},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tc.cookie})
			}
			token, err := FromRequest(req)
			if tc.wantErr != nil {
				if err != tc.wantErr {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromRequest: %v", err)
			}
			if token != tc.want {
				t.Fatalf("expected token %q, got %q", tc.want, token)
			}
		})
	}
}

func TestTryVerifyNeverFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, now)

	malformed := []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c",
		strings.Repeat("x", 4096),
	}
	for _, raw := range malformed {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		if raw != "" {
			req.Header.Set("Authorization", "Bearer "+raw)
		}
		if claims, ok := svc.TryVerify(req); ok || claims.IdentityID != "" {
			t.Fatalf("expected no identity for %q", raw)
		}
	}

	token, _, err := svc.Issue("acct-9", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	claims, ok := svc.TryVerify(req)
	if !ok || claims.IdentityID != "acct-9" {
		t.Fatalf("expected identity acct-9, got %+v ok=%v", claims, ok)
	}
}
