package auth

import "errors"

var (
	// Credential failures: the request carried no usable proof of identity.
	ErrMissingCredential = errors.New("auth: missing credential")
	ErrInvalidCredential = errors.New("auth: invalid credential")

	// Identity failures: the credential named an account we cannot honor.
	ErrAccountNotFound    = errors.New("auth: account not found")
	ErrAccountDeactivated = errors.New("auth: account deactivated")
	ErrStaleCredential    = errors.New("auth: credential predates password change")

	// Authorization failures.
	ErrUnauthenticated  = errors.New("auth: authentication required")
	ErrInsufficientRole = errors.New("auth: insufficient role")
	ErrAccessDenied     = errors.New("auth: access denied")
	ErrResourceNotFound = errors.New("auth: resource not found")
)
