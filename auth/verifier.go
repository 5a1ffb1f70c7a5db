// Package auth resolves the identity behind a handshake or API token. It
// makes no authorization decisions.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNoToken      = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Verifier accepts our own HS256 session tokens and, when a client id is
// configured, Google ID tokens.
type Verifier struct {
	secret         []byte
	googleClientID string
}

func NewVerifier(jwtSecret, googleClientID string) *Verifier {
	v := &Verifier{googleClientID: googleClientID}
	if jwtSecret != "" {
		v.secret = []byte(jwtSecret)
	}
	return v
}

// Enabled is false when neither token kind is configured; connections are
// then anonymous.
func (v *Verifier) Enabled() bool {
	return v != nil && (len(v.secret) > 0 || v.googleClientID != "")
}

func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	if len(v.secret) > 0 {
		if claims, err := ParseJWT(v.secret, token); err == nil {
			return Identity{UserID: claims.UserID, Name: claims.Name}, nil
		}
	}
	if v.googleClientID != "" {
		if id, err := VerifyIDToken(ctx, token, v.googleClientID); err == nil {
			return id, nil
		}
	}
	return Identity{}, ErrInvalidToken
}

func ReadBearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// FromRequest takes the token from the Authorization header, falling back
// to the token query parameter browsers use on websocket upgrades.
func FromRequest(r *http.Request) string {
	if t, err := ReadBearer(r); err == nil {
		return t
	}
	return r.URL.Query().Get("token")
}
