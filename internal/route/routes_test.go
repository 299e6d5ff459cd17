package route

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"

	"platecam/internal/config"
	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/repository/sqlite"
)

type noopHub struct{}

func (noopHub) Register(*websocket.Conn)   {}
func (noopHub) Unregister(*websocket.Conn) {}

type emptyStatus struct{}

func (emptyStatus) Status() dto.Status { return dto.Status{} }

func setupRouter(t *testing.T, password string) http.Handler {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{Password: password}
	return SetupRoutes(cfg, logger.Nop(), noopHub{}, emptyStatus{}, sqlite.NewClipRepository(db))
}

func TestSetupRoutes(t *testing.T) {
	router := setupRouter(t, "")

	tests := []struct {
		path     string
		expected int
	}{
		{"/api/status", http.StatusOK},
		{"/api/clips", http.StatusOK},
		{"/", http.StatusFound},
		{"/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.expected {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.expected, rec.Code)
		}
	}
}

func TestSetupRoutes_RequiresAuth(t *testing.T) {
	router := setupRouter(t, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/clips", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
