package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAnonymous reports a connection with no usable identity.
var ErrAnonymous = errors.New("anonymous identity")

// Identity is the authenticated principal carried by a bearer token.
type Identity struct {
	UserID   int
	Username string
}

// Claims is the JWT claim set issued by the external auth collaborator.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns the identity. An empty
// token is anonymous; a token without a user id is treated the same way.
func (v *Verifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrAnonymous
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return Identity{}, ErrAnonymous
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// Sign issues a token for the identity. The service itself never issues
// tokens in production; this exists for tests and local tooling.
func Sign(secret string, identity Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
	})
	return token.SignedString([]byte(secret))
}
