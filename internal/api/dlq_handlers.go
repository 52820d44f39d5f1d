package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
)

// getDeadLettersHandler lists dead letters, optionally filtered by status
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))

	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	status := models.DeadLetterStatus(r.URL.Query().Get("status"))

	messages, err := s.deps.DeadLetters.List(ctx, status, limit)

	if err != nil {
		s.logger.Error("Failed to fetch dead letter messages", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter messages")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"items":  messages,
			"count":  len(messages),
			"limit":  limit,
			"status": status,
		},
	})
}

// retryDeadLetterHandler queues a dead letter for the dead letter processor
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := s.messageID(w, r)
	if !ok {
		return
	}

	message, err := s.deps.DeadLetters.GetMessage(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to fetch dead letter message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter message")
		return
	}

	if message.Status == models.DeadLetterStatusResolved {
		s.respondWithError(w, http.StatusConflict, "Resolved messages cannot be retried")
		return
	}

	if err := s.deps.DeadLetters.ResetToPending(ctx, id); err != nil {
		s.logger.Error("Failed to queue message for retry", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to mark message for retry")
		return
	}

	s.logger.Info("Dead letter queued for retry", "messageID", id, "eventType", message.EventType)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Dead letter message marked for retry",
			"id":      strconv.FormatInt(id, 10),
		},
	})
}

// discardDeadLetterHandler discards a dead letter message
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := s.messageID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}

	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Reason == "" {
		req.Reason = "No reason provided"
	}

	if err := s.deps.DeadLetters.MarkAsDiscarded(ctx, id, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to discard message", "error", err, "messageID", id)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to discard message")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Dead letter message discarded",
			"id":      strconv.FormatInt(id, 10),
		},
	})
}

func (s *Server) messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return 0, false
	}
	return id, true
}
