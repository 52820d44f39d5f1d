package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status`

const insertOutbox = `
	INSERT INTO outbox_messages (
		aggregate_type, aggregate_id, event_type, payload, created_at, status
	) VALUES (
		$1, $2, $3, $4, $5, $6
	) RETURNING id
`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *database.Database, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInTx records message inside the caller's transaction
func (r *OutboxRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, message *models.OutboxMessage) error {
	var id int64

	err := tx.QueryRowContext(
		ctx,
		insertOutbox,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to create outbox message", "error", err, "eventType", message.EventType)
		return dbError(err)
	}

	message.ID = id
	return nil
}

// GetPendingMessages returns up to limit pending messages, oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage
	err := r.db.DB.SelectContext(ctx, &messages, query, models.OutboxStatusPending, limit)

	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, dbError(err)
	}

	return messages, nil
}

// MarkAsProcessing claims a message and counts the attempt
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	return r.update(ctx, id, "processing", `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2
	`, models.OutboxStatusProcessing, id)
}

// MarkAsCompleted records a successful publish
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	return r.update(ctx, id, "completed", `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3
	`, models.OutboxStatusCompleted, models.GetCurrentTime(), id)
}

// MarkAsFailed records the last publish error; the message is not retried
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	return r.update(ctx, id, "failed", `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`, models.OutboxStatusFailed, errorMessage, id)
}

// ReturnToPending puts a message back in the queue after a retryable failure
func (r *OutboxRepository) ReturnToPending(ctx context.Context, id int64, errorMessage string) error {
	return r.update(ctx, id, "pending", `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`, models.OutboxStatusPending, errorMessage, id)
}

func (r *OutboxRepository) update(ctx context.Context, id int64, state string, query string, args ...interface{}) error {
	_, err := r.db.DB.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to update outbox message", "error", err, "messageID", id, "state", state)
		return dbError(err)
	}

	return nil
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	var message models.OutboxMessage
	err := r.db.DB.GetContext(ctx, &message, `SELECT `+outboxColumns+` FROM outbox_messages WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}
