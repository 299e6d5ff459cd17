package handler

import (
	"net/http"

	"platecam/internal/dto"
)

// StatusProvider reports the live pipeline state.
type StatusProvider interface {
	Status() dto.Status
}

// StatusHandler serves GET /api/status.
func StatusHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, provider.Status())
	}
}
