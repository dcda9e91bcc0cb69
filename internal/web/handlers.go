package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mapfeed/tilewalk/internal/model"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.Store.LastRun()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"runs":             s.Store.RunCount(),
		"last_run":         last,
		"confirmed_absent": s.Cache.Len(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid 'limit' parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.Store.Runs(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleMissing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Cache.Keys())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
