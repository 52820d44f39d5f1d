package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
)

// OrderStore is the in-memory counterpart of repository.OrderRepository
type OrderStore struct {
	s *Store
}

// Create stores a new order and its order_created event
func (r *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if err := order.Validate(r.s.minimumBudget); err != nil {
		return err
	}

	msg, err := models.NewOrderCreatedEvent(order)

	if err != nil {
		return fmt.Errorf("build order_created event: %w", err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return fmt.Errorf("%w: order %s", repository.ErrDuplicate, order.ID)
	}

	for _, o := range r.s.orders {
		if o.ChannelID == order.ChannelID {
			return fmt.Errorf("%w: channel %s already has an order", repository.ErrDuplicate, order.ChannelID)
		}
	}

	r.s.orders[order.ID] = cloneOrder(order)
	r.s.appendEvent(msg)
	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

// GetByChannelID retrieves the order bound to a ticket channel
func (r *OrderStore) GetByChannelID(ctx context.Context, channelID string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, o := range r.s.orders {
		if o.ChannelID == channelID {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

// LatestWithTutor returns the requester's most recent order that has a tutor
func (r *OrderStore) LatestWithTutor(ctx context.Context, requester string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest *models.Order
	for _, o := range r.s.orders {
		if o.Requester != requester || o.AssignedTutor == nil {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) || (o.CreatedAt.Equal(latest.CreatedAt) && o.ID > latest.ID) {
			latest = o
		}
	}

	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(latest), nil
}

// List returns orders newest first
func (r *OrderStore) List(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	r.s.mu.Lock()
	var matched []*models.Order
	for _, o := range r.s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Requester != "" && o.Requester != filter.Requester {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	r.s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []*models.Order{}, nil
	}
	matched = matched[filter.Offset:]

	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// UpdateIntake stores intake answers while the order is still in intake
func (r *OrderStore) UpdateIntake(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}

	if stored.Status != models.OrderStatusPendingIntake {
		return &repository.StatusConflictError{
			OrderID:  order.ID,
			Current:  stored.Status,
			Expected: []models.OrderStatus{models.OrderStatusPendingIntake},
			Target:   models.OrderStatusPendingIntake,
		}
	}

	stored.Category = order.Category
	stored.Subject = order.Subject
	stored.DueDate = order.DueDate
	stored.ExtraInfo = order.ExtraInfo
	stored.BudgetAmount = order.BudgetAmount
	stored.BudgetRaw = order.BudgetRaw
	stored.BudgetUnit = order.BudgetUnit
	stored.BudgetFlagged = order.BudgetFlagged
	stored.UpdatedAt = models.GetCurrentTime()
	return nil
}

// Transition moves an order to to when its status is one of from
func (r *OrderStore) Transition(
	ctx context.Context,
	id string,
	from []models.OrderStatus,
	to models.OrderStatus,
	mutate func(*models.Order),
) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.transitionLocked(id, from, to, mutate)
}

// SubmitReview stores review and moves its order from delivered to reviewed
func (r *OrderStore) SubmitReview(ctx context.Context, review *models.Review) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.reviews[review.OrderID]; exists {
		return nil, fmt.Errorf("%w: review for order %s", repository.ErrDuplicate, review.OrderID)
	}

	msg, err := models.NewReviewSubmittedEvent(review)

	if err != nil {
		return nil, fmt.Errorf("build review_submitted event: %w", err)
	}

	updated, err := r.transitionLocked(review.OrderID,
		[]models.OrderStatus{models.OrderStatusDelivered}, models.OrderStatusReviewed,
		func(o *models.Order) {
			now := models.GetCurrentTime()
			o.ClosedAt = &now
		})
	if err != nil {
		return nil, err
	}

	stored := *review
	r.s.reviews[review.OrderID] = &stored
	r.s.appendEvent(msg)
	return updated, nil
}

// transitionLocked must be called with mu held. The stored order is only
// replaced once every check has passed.
func (r *OrderStore) transitionLocked(
	id string,
	from []models.OrderStatus,
	to models.OrderStatus,
	mutate func(*models.Order),
) (*models.Order, error) {
	stored, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	if err := repository.CheckTransition(stored, from, to); err != nil {
		return nil, err
	}

	next := cloneOrder(stored)
	oldStatus := next.Status
	next.Status = to

	if mutate != nil {
		mutate(next)
	}
	next.UpdatedAt = models.GetCurrentTime()

	if err := next.Validate(r.s.minimumBudget); err != nil {
		return nil, err
	}

	msg, err := models.NewOrderStatusChangedEvent(next, oldStatus)

	if err != nil {
		return nil, fmt.Errorf("build order_status_changed event: %w", err)
	}

	r.s.orders[id] = next
	r.s.appendEvent(msg)
	return cloneOrder(next), nil
}
