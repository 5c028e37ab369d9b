package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified result of a bearer credential.
type Identity struct {
	UserID      string
	DisplayName string
}

// JWT wraps a signing secret for verifying (and, for dev tooling,
// issuing) HS256 tokens.
type JWT struct{ secret []byte }

// New creates a verifier around the shared secret.
func New(secret string) *JWT { return &JWT{secret: []byte(secret)} }

// Verify checks a token and returns the identity from its claims. The
// "sub" claim is the user ID; "name" (falling back to "email") is the
// display identity shown to peers.
func (j *JWT) Verify(tok string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return Identity{}, errors.New("no sub claim")
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["email"].(string)
	}
	if name == "" {
		name = uid
	}
	return Identity{UserID: uid, DisplayName: name}, nil
}

// Sign mints a token for uid with the given TTL. Used by the token
// subcommand for local development; production tokens come from the
// identity service.
func (j *JWT) Sign(uid, name string, ttl time.Duration) (string, error) {
	if uid == "" {
		return "", errors.New("empty uid")
	}
	claims := jwt.MapClaims{
		"sub":  uid,
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(j.secret)
}
