package httpapi

import (
	"net/http"
	"strings"
	"time"

	"callsheet.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Account   *auth.Account `json:"account"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "email and password are required", nil)
		return
	}

	// Every failure path below answers identically so the endpoint does
	// not leak which accounts exist.
	account, err := a.accounts.FindByEmail(r.Context(), email)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}
	if !account.Active {
		writeFailure(w, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}
	if err := auth.VerifyPassword(account.PasswordHash, req.Password); err != nil {
		writeFailure(w, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}

	token, expiresAt, err := a.tokens.Issue(account.ID, account.Role)
	if err != nil {
		a.failRequest(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.env == envProduction,
		SameSite: http.SameSiteStrictMode,
	})
	a.recorder.Event(r.Context(), "auth.login", map[string]any{
		"identity_id": account.ID,
		"email":       account.Email,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	})
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())

	var req passwordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if len(req.NewPassword) < 8 {
		writeFailure(w, http.StatusBadRequest, "new password must be at least 8 characters", nil)
		return
	}
	if err := auth.VerifyPassword(account.PasswordHash, req.CurrentPassword); err != nil {
		writeFailure(w, http.StatusUnauthorized, "current password is incorrect", nil)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		a.failRequest(w, err)
		return
	}
	// Recording the change time invalidates every credential issued up
	// to and including this instant.
	if err := a.accounts.UpdatePassword(r.Context(), account.ID, hash, time.Now().UTC()); err != nil {
		a.failRequest(w, err)
		return
	}
	a.recorder.Event(r.Context(), "auth.password_changed", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "password changed, please log in again",
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
