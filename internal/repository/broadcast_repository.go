package repository

import (
	"context"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// BroadcastRepository remembers where each order alert was delivered so
// the claim buttons can be disabled later
type BroadcastRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewBroadcastRepository creates a new BroadcastRepository
func NewBroadcastRepository(db *database.Database, logger logger.Logger) *BroadcastRepository {
	return &BroadcastRepository{
		db:     db,
		logger: logger,
	}
}

// AddCopy records one delivered alert
func (r *BroadcastRepository) AddCopy(ctx context.Context, c *models.BroadcastCopy) error {
	query := `
		INSERT INTO broadcast_copies (order_id, channel_id, message_id, direct, created_at)
		VALUES (:order_id, :channel_id, :message_id, :direct, :created_at)
		ON CONFLICT (order_id, message_id) DO NOTHING
	`

	_, err := r.db.DB.NamedExecContext(ctx, query, c)

	if err != nil {
		r.logger.Error("Failed to record broadcast copy", "error", err, "orderID", c.OrderID)
		return dbError(err)
	}

	return nil
}

// ListCopies returns every alert delivered for orderID
func (r *BroadcastRepository) ListCopies(ctx context.Context, orderID string) ([]*models.BroadcastCopy, error) {
	query := `
		SELECT order_id, channel_id, message_id, direct, created_at
		FROM broadcast_copies
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	var copies []*models.BroadcastCopy
	err := r.db.DB.SelectContext(ctx, &copies, query, orderID)

	if err != nil {
		r.logger.Error("Failed to list broadcast copies", "error", err, "orderID", orderID)
		return nil, dbError(err)
	}

	return copies, nil
}
