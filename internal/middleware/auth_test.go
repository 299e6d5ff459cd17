package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware("secret")(okHandler())

	tests := []struct {
		name     string
		path     string
		cookie   bool
		xhr      bool
		expected int
	}{
		{"login is public", "/auth/login", false, false, http.StatusOK},
		{"api without cookie", "/api/status", false, false, http.StatusUnauthorized},
		{"xhr without cookie", "/logs/info", false, true, http.StatusUnauthorized},
		{"page without cookie", "/logs/info", false, false, http.StatusSeeOther},
		{"api with cookie", "/api/status", true, false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
			}
			if tt.xhr {
				req.Header.Set("X-Requested-With", "XMLHttpRequest")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_NoPassword(t *testing.T) {
	h := AuthMiddleware("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected open access without a password, got %d", rec.Code)
	}
}
