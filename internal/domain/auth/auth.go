package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when credentials or a bearer token are rejected.
var ErrUnauthorized = errors.New("unauthorized")

// Session identifies the current shopper. A session without a token is a
// guest session.
type Session struct {
	Token  string
	UserID string
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// User is the profile returned by the auth provider at sign-in.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Credentials are submitted to the auth provider to obtain a session.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticator exchanges credentials for a token and user profile.
type Authenticator interface {
	SignIn(ctx context.Context, creds Credentials) (token string, user User, err error)
}

// TokenInfo holds the identity bound to a provisioned bearer token.
type TokenInfo struct {
	ID        string
	TokenHash string
	UserID    string
}

// Repository provides lookup of bearer tokens by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*TokenInfo, error)
}
