package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
)

// MatchesResponse is the body of GET /api/matches.
type MatchesResponse struct {
	Pattern    string   `json:"pattern"`
	Paths      []string `json:"paths"`
	MatchCount int      `json:"match_count"`
	TotalFiles int      `json:"total_files"`
	Truncated  bool     `json:"truncated"`
}

// PatternRequest is the body of POST /api/pattern.
type PatternRequest struct {
	Pattern string `json:"pattern"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "dirfilter",
		"timestamp": time.Now().Unix(),
	})
}

// handleMatches handles GET /api/matches?limit=N
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit := s.maxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap, ok := s.filter.Latest()
	if !ok {
		s.respondError(w, http.StatusServiceUnavailable, domain.ErrNoTreeAvailable.Error())
		return
	}

	paths := snap.Paths(limit)
	s.respondJSON(w, http.StatusOK, MatchesResponse{
		Pattern:    snap.Pattern(),
		Paths:      paths,
		MatchCount: snap.Len(),
		TotalFiles: snap.TotalFiles(),
		Truncated:  len(paths) < snap.Len(),
	})
}

// handleSetPattern handles POST /api/pattern
func (s *Server) handleSetPattern(w http.ResponseWriter, r *http.Request) {
	var req PatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.filter.SetPattern(req.Pattern); err != nil {
		if errors.Is(err, domain.ErrFilterStopped) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Debug("Pattern received", "pattern", req.Pattern)
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "accepted",
		"pattern": req.Pattern,
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.status())
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
