package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signTestToken mints an HS256 token the way a login service would.
func signTestToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "test-user",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestValidateToken(t *testing.T) {
	secret := "test-secret-key-at-least-32-characters-long"

	t.Run("valid token", func(t *testing.T) {
		token := signTestToken(t, secret, time.Minute)
		if err := validateToken(token, secret); err != nil {
			t.Errorf("validateToken() error = %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signTestToken(t, "some-other-secret-of-sufficient-length", time.Minute)
		if err := validateToken(token, secret); err == nil {
			t.Error("validateToken() expected error for wrong secret")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token := signTestToken(t, secret, -time.Minute)
		if err := validateToken(token, secret); err == nil {
			t.Error("validateToken() expected error for expired token")
		}
	})

	t.Run("not a token", func(t *testing.T) {
		if err := validateToken("not-a-valid-jwt", secret); err == nil {
			t.Error("validateToken() expected error for malformed token")
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer header", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws/events", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthorize_OpenWithoutSecret(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("GET", "/ws/events", nil)
	if err := srv.authorize(r); err != nil {
		t.Errorf("authorize() error = %v, want nil with no secret", err)
	}
}
