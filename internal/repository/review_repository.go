package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// ReviewRepository reads stored reviews. Reviews are written by
// OrderRepository.SubmitReview together with the status change.
type ReviewRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *database.Database, logger logger.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// GetByOrderID retrieves the review left on an order
func (r *ReviewRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Review, error) {
	query := `
		SELECT id, order_id, reviewer, tutor, rating, text, created_at
		FROM reviews
		WHERE order_id = $1
	`

	var review models.Review
	err := r.db.DB.GetContext(ctx, &review, query, orderID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get review", "error", err, "orderID", orderID)
		return nil, dbError(err)
	}

	return &review, nil
}
