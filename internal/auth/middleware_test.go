package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookshelf/internal/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateAndRequireAdmin(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, clock.NewManual(time.Now()))
	adminToken, _, err := tokens.Issue(User{ID: uuid.New(), Username: "admin", Role: RoleAdmin})
	require.NoError(t, err)
	userToken, _, err := tokens.Issue(User{ID: uuid.New(), Username: "user", Role: RoleUser})
	require.NoError(t, err)

	var seen Principal
	h := Authenticate(tokens)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"non-admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/books", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "admin", seen.Username)
}
