package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/repository"
)

const defaultClipLimit = 50

// ClipsResponse is the payload of GET /api/clips.
type ClipsResponse struct {
	Clips []model.Clip `json:"clips"`
	Total int          `json:"total"`
}

// GetClipsHandler lists ledger clips filtered by identifier, status, after/before (RFC 3339), limit and offset.
func GetClipsHandler(clipRepo repository.ClipRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		filter := &dto.ClipFilters{
			Identifier: q.Get("identifier"),
			Status:     q.Get("status"),
			Limit:      atoiDefault(q.Get("limit"), defaultClipLimit),
			Offset:     atoiDefault(q.Get("offset"), 0),
		}
		var err error
		if filter.After, err = parseTime(q.Get("after")); err != nil {
			http.Error(w, "Invalid after parameter", http.StatusBadRequest)
			return
		}
		if filter.Before, err = parseTime(q.Get("before")); err != nil {
			http.Error(w, "Invalid before parameter", http.StatusBadRequest)
			return
		}

		clips, err := clipRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying clips: %v", err)
			http.Error(w, "Failed to query clips", http.StatusInternalServerError)
			return
		}
		total, err := clipRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting clips: %v", err)
			http.Error(w, "Failed to query clips", http.StatusInternalServerError)
			return
		}
		if clips == nil {
			clips = []model.Clip{}
		}

		writeJSON(w, ClipsResponse{Clips: clips, Total: total})
	}
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(v)
}
