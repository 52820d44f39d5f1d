package memstore

import (
	"context"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
)

// OutboxStore exposes the events recorded alongside order changes
type OutboxStore struct {
	s *Store
}

func (r *OutboxStore) find(id int64) (*models.OutboxMessage, error) {
	for _, m := range r.s.outbox {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetPendingMessages returns up to limit pending messages, oldest first
func (r *OutboxStore) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.OutboxMessage
	for _, m := range r.s.outbox {
		if len(out) >= limit {
			break
		}
		if m.Status == models.OutboxStatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkAsProcessing claims a message and counts the attempt
func (r *OutboxStore) MarkAsProcessing(ctx context.Context, id int64) error {
	return r.set(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusProcessing
		m.ProcessingAttempts++
	})
}

// MarkAsCompleted records a successful publish
func (r *OutboxStore) MarkAsCompleted(ctx context.Context, id int64) error {
	return r.set(id, func(m *models.OutboxMessage) {
		now := models.GetCurrentTime()
		m.Status = models.OutboxStatusCompleted
		m.ProcessedAt = &now
	})
}

// MarkAsFailed records the last publish error
func (r *OutboxStore) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	return r.set(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusFailed
		m.LastError = &errorMessage
	})
}

// ReturnToPending queues a message for another attempt
func (r *OutboxStore) ReturnToPending(ctx context.Context, id int64, errorMessage string) error {
	return r.set(id, func(m *models.OutboxMessage) {
		m.Status = models.OutboxStatusPending
		m.LastError = &errorMessage
	})
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxStore) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, err := r.find(id)
	if err != nil {
		return nil, err
	}
	cp := *m
	return &cp, nil
}

// All returns a snapshot of every recorded event
func (r *OutboxStore) All() []models.OutboxMessage {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.OutboxMessage, len(r.s.outbox))
	for i, m := range r.s.outbox {
		out[i] = *m
	}
	return out
}

func (r *OutboxStore) set(id int64, fn func(*models.OutboxMessage)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, err := r.find(id)
	if err != nil {
		return err
	}
	fn(m)
	return nil
}

// DeadLetterStore holds events that exhausted their publish attempts
type DeadLetterStore struct {
	s *Store
}

func (r *DeadLetterStore) find(id int64) (*models.DeadLetterMessage, error) {
	for _, m := range r.s.deadLetters {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create stores a dead letter message
func (r *DeadLetterStore) Create(ctx context.Context, message *models.DeadLetterMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.deadSeq++
	message.ID = r.s.deadSeq

	cp := *message
	r.s.deadLetters = append(r.s.deadLetters, &cp)
	return nil
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterStore) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	return r.List(ctx, models.DeadLetterStatusPending, limit)
}

// List returns messages in status, oldest first. An empty status lists all.
func (r *DeadLetterStore) List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.DeadLetterMessage
	for _, m := range r.s.deadLetters {
		if len(out) >= limit {
			break
		}
		if status == "" || m.Status == status {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetMessage retrieves a dead letter message by ID
func (r *DeadLetterStore) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, err := r.find(id)
	if err != nil {
		return nil, err
	}
	cp := *m
	return &cp, nil
}

// MarkAsRetrying marks a message as being retried
func (r *DeadLetterStore) MarkAsRetrying(ctx context.Context, id int64) error {
	return r.set(id, func(m *models.DeadLetterMessage) bool {
		now := models.GetCurrentTime()
		m.Status = models.DeadLetterStatusRetrying
		m.RetryCount++
		m.LastRetryAt = &now
		return true
	})
}

// MarkAsResolved marks a message as resolved
func (r *DeadLetterStore) MarkAsResolved(ctx context.Context, id int64) error {
	return r.set(id, func(m *models.DeadLetterMessage) bool {
		now := models.GetCurrentTime()
		m.Status = models.DeadLetterStatusResolved
		m.ResolvedAt = &now
		return true
	})
}

// MarkAsDiscarded marks a message as permanently discarded
func (r *DeadLetterStore) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	return r.set(id, func(m *models.DeadLetterMessage) bool {
		now := models.GetCurrentTime()
		m.Status = models.DeadLetterStatusDiscarded
		m.FailureReason += " | Discarded: " + reason
		m.ResolvedAt = &now
		return true
	})
}

// ResetToPending queues an unresolved message for another attempt
func (r *DeadLetterStore) ResetToPending(ctx context.Context, id int64) error {
	return r.set(id, func(m *models.DeadLetterMessage) bool {
		if m.Status == models.DeadLetterStatusResolved {
			return false
		}
		m.Status = models.DeadLetterStatusPending
		m.ResolvedAt = nil
		return true
	})
}

func (r *DeadLetterStore) set(id int64, fn func(*models.DeadLetterMessage) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, err := r.find(id)
	if err != nil {
		return err
	}
	if !fn(m) {
		return repository.ErrNotFound
	}
	return nil
}
