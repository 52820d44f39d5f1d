package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// getCircuitBreakerStatusHandler returns the state of every breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	metrics := make([]map[string]interface{}, 0, len(s.deps.Breakers))

	for _, cb := range s.deps.Breakers {
		metrics = append(metrics, cb.GetMetrics())
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

// resetCircuitBreakerHandler resets the named breaker to closed
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, cb := range s.deps.Breakers {
		if cb.Name() != name {
			continue
		}

		cb.Reset()
		s.logger.Info("Circuit breaker reset by operator", "breaker", name)

		s.respondWithJSON(w, http.StatusOK, ApiResponse{
			Success: true,
			Data: map[string]string{
				"message": "Circuit breaker reset successfully",
				"name":    name,
			},
		})
		return
	}

	s.respondWithError(w, http.StatusNotFound, "Circuit breaker not found")
}
