package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const orderColumns = `id, ticket_id, guild_id, channel_id, requester, category, subject, due_date,
	extra_info, budget_amount, budget_raw, budget_unit, budget_flagged, status, assigned_tutor,
	created_at, updated_at, claimed_at, delivered_at, closed_at`

// OrderFilter narrows List results
type OrderFilter struct {
	Status    models.OrderStatus
	Requester string
	Limit     int
	Offset    int
}

// OrderRepository handles database operations for orders
type OrderRepository struct {
	db            *database.Database
	outbox        *OutboxRepository
	minimumBudget decimal.Decimal
	logger        logger.Logger
}

// NewOrderRepository creates a new OrderRepository. Every write also
// records an outbox event in the same transaction.
func NewOrderRepository(db *database.Database, outbox *OutboxRepository, minimumBudget decimal.Decimal, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:            db,
		outbox:        outbox,
		minimumBudget: minimumBudget,
		logger:        logger,
	}
}

// Create inserts a new order into the database
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := order.Validate(r.minimumBudget); err != nil {
		return err
	}

	return withTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES (:id, :ticket_id, :guild_id, :channel_id, :requester, :category, :subject, :due_date,
				:extra_info, :budget_amount, :budget_raw, :budget_unit, :budget_flagged, :status, :assigned_tutor,
				:created_at, :updated_at, :claimed_at, :delivered_at, :closed_at)
		`

		if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
			r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
			return dbError(err)
		}

		msg, err := models.NewOrderCreatedEvent(order)

		if err != nil {
			return fmt.Errorf("build order_created event: %w", err)
		}

		return r.outbox.CreateInTx(ctx, tx, msg)
	})
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByChannelID retrieves the order bound to a ticket channel
func (r *OrderRepository) GetByChannelID(ctx context.Context, channelID string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE channel_id = $1`, channelID)
}

// LatestWithTutor returns the requester's most recent order that has a tutor
func (r *OrderRepository) LatestWithTutor(ctx context.Context, requester string) (*models.Order, error) {
	return r.getOne(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE requester = $1 AND assigned_tutor IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1`, requester)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg string) (*models.Order, error) {
	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, arg)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order", "error", err, "key", arg)
		return nil, dbError(err)
	}

	return &order, nil
}

// List returns orders newest first
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1::text) AND ($2::text = '' OR requester = $2::text)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, string(filter.Status), filter.Requester, filter.Limit, filter.Offset)

	if err != nil {
		r.logger.Error("Failed to list orders", "error", err, "status", filter.Status)
		return nil, dbError(err)
	}

	return orders, nil
}

// UpdateIntake stores intake answers; only orders still in intake change
func (r *OrderRepository) UpdateIntake(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders
		SET category = $1, subject = $2, due_date = $3, extra_info = $4,
			budget_amount = $5, budget_raw = $6, budget_unit = $7, budget_flagged = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		order.Category,
		order.Subject,
		order.DueDate,
		order.ExtraInfo,
		order.BudgetAmount,
		order.BudgetRaw,
		order.BudgetUnit,
		order.BudgetFlagged,
		models.GetCurrentTime(),
		order.ID,
		models.OrderStatusPendingIntake,
	)

	if err != nil {
		r.logger.Error("Failed to update order intake", "error", err, "orderID", order.ID)
		return dbError(err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return dbError(err)
	}

	if rowsAffected == 0 {
		current, err := r.GetByID(ctx, order.ID)
		if err != nil {
			return err
		}
		return &StatusConflictError{
			OrderID:  order.ID,
			Current:  current.Status,
			Expected: []models.OrderStatus{models.OrderStatusPendingIntake},
			Target:   models.OrderStatusPendingIntake,
		}
	}

	return nil
}

// Transition moves an order to status to, provided its current status is
// one of from. The row is locked for the duration, so of two concurrent
// transitions out of the same status exactly one succeeds.
func (r *OrderRepository) Transition(
	ctx context.Context,
	id string,
	from []models.OrderStatus,
	to models.OrderStatus,
	mutate func(*models.Order),
) (*models.Order, error) {
	var updated *models.Order

	err := withTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		order, err := r.transitionInTx(ctx, tx, id, from, to, mutate)
		if err != nil {
			return err
		}
		updated = order
		return nil
	})

	return updated, err
}

// SubmitReview stores review and moves its order from delivered to reviewed
func (r *OrderRepository) SubmitReview(ctx context.Context, review *models.Review) (*models.Order, error) {
	var updated *models.Order

	err := withTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		order, err := r.transitionInTx(ctx, tx, review.OrderID,
			[]models.OrderStatus{models.OrderStatusDelivered}, models.OrderStatusReviewed,
			func(o *models.Order) {
				now := models.GetCurrentTime()
				o.ClosedAt = &now
			})
		if err != nil {
			return err
		}

		query := `
			INSERT INTO reviews (id, order_id, reviewer, tutor, rating, text, created_at)
			VALUES (:id, :order_id, :reviewer, :tutor, :rating, :text, :created_at)
		`

		if _, err := tx.NamedExecContext(ctx, query, review); err != nil {
			r.logger.Error("Failed to create review", "error", err, "orderID", review.OrderID)
			return dbError(err)
		}

		msg, err := models.NewReviewSubmittedEvent(review)

		if err != nil {
			return fmt.Errorf("build review_submitted event: %w", err)
		}

		if err := r.outbox.CreateInTx(ctx, tx, msg); err != nil {
			return err
		}

		updated = order
		return nil
	})

	return updated, err
}

func (r *OrderRepository) transitionInTx(
	ctx context.Context,
	tx *sqlx.Tx,
	id string,
	from []models.OrderStatus,
	to models.OrderStatus,
	mutate func(*models.Order),
) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to lock order", "error", err, "orderID", id)
		return nil, dbError(err)
	}

	if err := CheckTransition(&order, from, to); err != nil {
		return nil, err
	}

	oldStatus := order.Status
	order.Status = to

	if mutate != nil {
		mutate(&order)
	}
	order.UpdatedAt = models.GetCurrentTime()

	if err := order.Validate(r.minimumBudget); err != nil {
		return nil, err
	}

	query := `
		UPDATE orders
		SET status = $1, assigned_tutor = $2, updated_at = $3, claimed_at = $4, delivered_at = $5, closed_at = $6
		WHERE id = $7
	`

	_, err = tx.ExecContext(ctx, query,
		order.Status,
		order.AssignedTutor,
		order.UpdatedAt,
		order.ClaimedAt,
		order.DeliveredAt,
		order.ClosedAt,
		order.ID,
	)

	if err != nil {
		r.logger.Error("Failed to update order status", "error", err, "orderID", id, "status", to)
		return nil, dbError(err)
	}

	msg, err := models.NewOrderStatusChangedEvent(&order, oldStatus)

	if err != nil {
		return nil, fmt.Errorf("build order_status_changed event: %w", err)
	}

	if err := r.outbox.CreateInTx(ctx, tx, msg); err != nil {
		return nil, err
	}

	return &order, nil
}
