package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken is returned by verifiers when a credential is malformed, expired or rejected.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the caller resolved from a verified credential. It is the only
// value ownership checks are allowed to compare against.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// Name returns the display name, falling back to the email address.
func (i Identity) Name() string {
	if strings.TrimSpace(i.DisplayName) != "" {
		return i.DisplayName
	}
	return i.Email
}

// IsZero reports whether no caller was resolved.
func (i Identity) IsZero() bool {
	return i.UID == "" && i.Email == ""
}

// TokenVerifier turns an opaque bearer credential into a caller Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
