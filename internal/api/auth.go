package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid indicates a JWT that failed signature or claim validation.
var ErrTokenInvalid = errors.New("api: invalid access token")

// authorize checks the caller's credentials for the event stream.
//
// With no JWT secret configured the stream is open. Otherwise the request
// must carry a valid HS256 token, either as an Authorization: Bearer
// header or an accessToken query parameter, since browser WebSocket clients
// cannot set headers, so the query form is the one UIs actually use.
func (s *Server) authorize(r *http.Request) error {
	if s.jwtSecret == "" {
		return nil
	}

	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("accessToken")
	}
	if token == "" {
		return fmt.Errorf("access token is required")
	}

	if err := validateToken(token, s.jwtSecret); err != nil {
		s.logger.Warn("websocket auth failed", "error", err)
		return ErrTokenInvalid
	}
	return nil
}

// bearerToken extracts the token from an Authorization: Bearer header,
// returning "" when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// validateToken checks the signature and expiry of an HS256 access token.
// It rejects tokens signed with any other algorithm, including "none".
func validateToken(tokenString, secret string) error {
	token, err := jwt.Parse(tokenString, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("parsing access token: %w", err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
