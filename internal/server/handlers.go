package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// handleHealth reports the service as unhealthy when a database fails
// its ping or quick check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "valuescope",
	}

	for _, db := range s.container.Databases() {
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response, s.log)
			return
		}
	}

	writeJSON(w, http.StatusOK, response, s.log)
}

const healthCheckTimeout = 5 * time.Second

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, log zerolog.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, log)
}
