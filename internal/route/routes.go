package route

import (
	"net/http"

	"platecam/internal/config"
	"platecam/internal/handler"
	"platecam/internal/logger"
	"platecam/internal/middleware"
	"platecam/internal/repository"
)

// SetupRoutes registers the status, ledger, event and log endpoints and wraps
// the mux with the authentication middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, hub handler.ViewerHub,
	status handler.StatusProvider, clipRepo repository.ClipRepository) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", handler.StatusHandler(status))
	mux.HandleFunc("/api/clips", handler.GetClipsHandler(clipRepo, logger))
	mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(hub, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		filename := level + ".log"
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(logger, filename))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, filename))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/status", http.StatusFound)
	})

	return middleware.AuthMiddleware(cfg.Password)(mux)
}
