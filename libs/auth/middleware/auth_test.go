package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockValidator struct {
	userID string
	err    error
	got    string
}

func (m *mockValidator) ValidateAccessToken(token string) (string, error) {
	m.got = token
	return m.userID, m.err
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		cookie         string
		validator      *mockValidator
		expectedStatus int
		expectedToken  string
	}{
		{name: "bearer header", header: "Bearer tok", validator: &mockValidator{userID: "u1"}, expectedStatus: http.StatusOK, expectedToken: "tok"},
		{name: "lowercase scheme", header: "bearer tok", validator: &mockValidator{userID: "u1"}, expectedStatus: http.StatusOK, expectedToken: "tok"},
		{name: "cookie", cookie: "tok", validator: &mockValidator{userID: "u1"}, expectedStatus: http.StatusOK, expectedToken: "tok"},
		{name: "missing", validator: &mockValidator{}, expectedStatus: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer tok", validator: &mockValidator{err: errors.New("bad")}, expectedStatus: http.StatusUnauthorized, expectedToken: "tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var caller string
			h := AuthMiddleware(tt.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				caller, _ = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedToken, tt.validator.got)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "u1", caller)
			}
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name           string
		configured     string
		provided       string
		expectedStatus int
	}{
		{name: "disabled", configured: "", provided: "", expectedStatus: http.StatusOK},
		{name: "match", configured: "k", provided: "k", expectedStatus: http.StatusOK},
		{name: "mismatch", configured: "k", provided: "x", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.Header.Set("X-API-Key", tt.provided)
			w := httptest.NewRecorder()

			APIKeyMiddleware(tt.configured)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
