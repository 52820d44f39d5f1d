package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Breakers  map[string]string `json:"breakers,omitempty"`
}

// healthCheckHandler reports "degraded" while any breaker is open
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   s.config.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Breakers:  make(map[string]string, len(s.deps.Breakers)),
	}

	for _, cb := range s.deps.Breakers {
		state := cb.GetState()
		health.Breakers[cb.Name()] = state.String()
		if state == circuitbreaker.StateOpen {
			health.Status = "degraded"
		}
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// getOrdersHandler lists orders, newest first
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repository.OrderFilter{
		Status:    models.OrderStatus(query.Get("status")),
		Requester: query.Get("requester"),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		s.respondWithError(w, http.StatusBadRequest, "Unknown order status")
		return
	}

	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}

	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	orders, err := s.deps.Orders.List(r.Context(), filter)

	if err != nil {
		s.logger.Error("Failed to list orders", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getOrderByIDHandler returns an order by ID
func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := s.deps.Orders.GetByID(r.Context(), id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("Failed to fetch order", "error", err, "orderID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getOrderReviewHandler returns the review left on an order
func (s *Server) getOrderReviewHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	review, err := s.deps.Reviews.GetByOrderID(r.Context(), id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Review not found")
			return
		}
		s.logger.Error("Failed to fetch review", "error", err, "orderID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch review")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    review,
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
