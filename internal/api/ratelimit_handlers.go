package api

import (
	"net/http"
)

// getRateLimitsHandler returns the per-user limiter settings and how many
// users each limiter is tracking
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	response := make(map[string]interface{}, len(s.deps.Limits))

	for name, l := range s.deps.Limits {
		tracked := 0
		if l.Tracked != nil {
			tracked = l.Tracked()
		}

		response[name] = map[string]interface{}{
			"max_tokens":    l.MaxTokens,
			"refill_rate":   l.RefillRate,
			"tracked_users": tracked,
		}
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response})
}
