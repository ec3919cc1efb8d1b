package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminAudience must be present in the aud claim of tokens used on the
// destructive endpoints.
const AdminAudience = "easyviews-admin"

var (
	errMissingBearer = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid token")
	errForbidden     = errors.New("token lacks admin audience")
)

// authorizer verifies HS256 bearer tokens.
type authorizer struct {
	key []byte
}

// authorize returns nil, errMissingBearer/errInvalidToken (401) or
// errForbidden (403).
func (a *authorizer) authorize(r *http.Request) error {
	raw := parseBearer(r.Header.Get("Authorization"))
	if raw == "" {
		return errMissingBearer
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.key, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return errInvalidToken
	}

	for _, aud := range claims.Audience {
		if aud == AdminAudience {
			return nil
		}
	}
	return errForbidden
}

func parseBearer(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
