package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const deadLetterColumns = `id, original_message_id, aggregate_type, aggregate_id, event_type, payload,
	error_message, failure_reason, retry_count, last_retry_at, status, created_at, resolved_at`

// DeadLetterRepository stores outbox events that could not be published
type DeadLetterRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewDeadLetterRepository creates a new DeadLetterRepository
func NewDeadLetterRepository(db *database.Database, logger logger.Logger) *DeadLetterRepository {
	return &DeadLetterRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new dead letter message
func (r *DeadLetterRepository) Create(ctx context.Context, message *models.DeadLetterMessage) error {
	query := `
		INSERT INTO dead_letter_messages (
			original_message_id, aggregate_type, aggregate_id, event_type, payload,
			error_message, failure_reason, retry_count, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id
	`

	var id int64

	err := r.db.DB.QueryRowContext(
		ctx,
		query,
		message.OriginalMessageID,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.ErrorMessage,
		message.FailureReason,
		message.RetryCount,
		message.Status,
		message.CreatedAt,
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to create dead letter message", "error", err, "originalID", message.OriginalMessageID)
		return dbError(err)
	}

	message.ID = id
	return nil
}

// GetPendingMessages retrieves pending dead letter messages
func (r *DeadLetterRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error) {
	return r.List(ctx, models.DeadLetterStatusPending, limit)
}

// List returns messages in status, oldest first. An empty status lists all.
func (r *DeadLetterRepository) List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error) {
	query := `SELECT ` + deadLetterColumns + `
		FROM dead_letter_messages
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at ASC
		LIMIT $2
	`

	var messages []*models.DeadLetterMessage
	err := r.db.DB.SelectContext(ctx, &messages, query, string(status), limit)

	if err != nil {
		r.logger.Error("Failed to list dead letter messages", "error", err, "status", status)
		return nil, dbError(err)
	}

	return messages, nil
}

// MarkAsRetrying marks a message as being retried
func (r *DeadLetterRepository) MarkAsRetrying(ctx context.Context, id int64) error {
	return r.update(ctx, id, `
		UPDATE dead_letter_messages
		SET status = $1, retry_count = retry_count + 1, last_retry_at = $2
		WHERE id = $3
	`, string(models.DeadLetterStatusRetrying), models.GetCurrentTime(), id)
}

// MarkAsResolved marks a message as resolved
func (r *DeadLetterRepository) MarkAsResolved(ctx context.Context, id int64) error {
	return r.update(ctx, id, `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = $2
		WHERE id = $3
	`, string(models.DeadLetterStatusResolved), models.GetCurrentTime(), id)
}

// MarkAsDiscarded marks a message as permanently discarded
func (r *DeadLetterRepository) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	return r.update(ctx, id, `
		UPDATE dead_letter_messages
		SET status = $1, failure_reason = CONCAT(failure_reason, ' | Discarded: ', $2::text), resolved_at = $3
		WHERE id = $4
	`, string(models.DeadLetterStatusDiscarded), reason, models.GetCurrentTime(), id)
}

// ResetToPending queues a retrying or discarded message for another attempt
func (r *DeadLetterRepository) ResetToPending(ctx context.Context, id int64) error {
	return r.update(ctx, id, `
		UPDATE dead_letter_messages
		SET status = $1, resolved_at = NULL
		WHERE id = $2 AND status <> $3
	`, string(models.DeadLetterStatusPending), id, string(models.DeadLetterStatusResolved))
}

func (r *DeadLetterRepository) update(ctx context.Context, id int64, query string, args ...interface{}) error {
	result, err := r.db.DB.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to update dead letter message", "error", err, "messageID", id)
		return dbError(err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return dbError(err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetMessage retrieves a message by ID
func (r *DeadLetterRepository) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	var message models.DeadLetterMessage
	err := r.db.DB.GetContext(ctx, &message, `SELECT `+deadLetterColumns+` FROM dead_letter_messages WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get dead letter message", "error", err, "messageID", id)
		return nil, dbError(err)
	}

	return &message, nil
}
