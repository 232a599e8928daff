package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "callsheet"
	defaultTokenTTL = 12 * time.Hour

	// TokenCookie is the fallback credential source for browser clients.
	// The Authorization header always wins when both are present.
	TokenCookie = "callsheet_token"
)

// Claims is the verified content of a credential: who it names and when
// it was issued. Issuance time is what the resolver compares against the
// account's last password change.
type Claims struct {
	IdentityID string
	Role       string
	IssuedAt   time.Time
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies bearer credentials with HS256. It is
// an injected component: the signing secret and clock are instance
// state, never process globals.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTTL configures credential lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a verifier/signer over the given secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &TokenService{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL reports the configured credential lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a credential for the given identity and role.
func (s *TokenService) Issue(identityID, role string) (string, time.Time, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return "", time.Time{}, errors.New("auth: identity id is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := tokenClaims{
		Role: strings.ToLower(strings.TrimSpace(role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks structure, signature and expiry, returning the claimed
// identity and issuance time. It does not confirm the account exists.
func (s *TokenService) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMissingCredential
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidCredential
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return Claims{}, ErrInvalidCredential
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidCredential
	}
	if err := s.validate(claims); err != nil {
		return Claims{}, ErrInvalidCredential
	}
	return Claims{
		IdentityID: claims.Subject,
		Role:       claims.Role,
		IssuedAt:   claims.IssuedAt.Time.UTC(),
	}, nil
}

func (s *TokenService) validate(claims *tokenClaims) error {
	if claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := s.now().UTC()
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// FromRequest extracts the raw credential: Authorization header first,
// fallback cookie second. ErrMissingCredential when neither yields one.
func FromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			return "", ErrInvalidCredential
		}
		token := strings.TrimSpace(header[len(bearer):])
		if token == "" {
			return "", ErrMissingCredential
		}
		return token, nil
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingCredential
}

// TryVerify performs the same checks as Verify but never fails the
// request: on any error it reports no identity so the caller proceeds
// unauthenticated.
func (s *TokenService) TryVerify(r *http.Request) (Claims, bool) {
	raw, err := FromRequest(r)
	if err != nil {
		return Claims{}, false
	}
	claims, err := s.Verify(raw)
	if err != nil {
		return Claims{}, false
	}
	return claims, true
}
