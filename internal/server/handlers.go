package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/posenv/internal/aggregator"
	"github.com/aristath/posenv/internal/domain"
)

const maxBodyBytes = 1 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":        "healthy",
		"service":       "posenv",
		"server_status": s.status.ServerStatus(),
	}

	if s.db != nil {
		if err := s.db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Request log database failed integrity check")
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handlePositionEnvironment serves GET (cached) and POST (recomputed)
// position environment requests.
func (s *Server) handlePositionEnvironment(w http.ResponseWriter, r *http.Request) {
	in := aggregator.Inbound{
		Method:  r.Method,
		Query:   r.URL.Query(),
		BaseURL: baseURL(r),
	}

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			// An unreadable body fails validation and is still logged
			s.log.Warn().Err(err).Msg("Failed to read request body")
		}
		in.Body = body
	}

	env, err := s.service.Handle(r.Context(), in)
	w.Header().Set("X-Request-ID", env.RequestID)

	code := http.StatusOK
	if err != nil {
		code = http.StatusInternalServerError
		if domain.IsValidation(err) {
			code = http.StatusBadRequest
		}
	}
	s.writeJSON(w, code, env)
}

// handleGetRequest returns a stored request record
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.service.Replay(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "request not found")
			return
		}
		s.log.Error().Err(err).Str("request_id", id).Msg("Failed to load request")
		s.writeError(w, http.StatusInternalServerError, "failed to load request")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

// baseURL is the absolute URL the request was sent to, without the query.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
