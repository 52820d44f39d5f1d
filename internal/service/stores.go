package service

import (
	"context"
	"errors"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

// OrderStore persists orders. Implemented by repository.OrderRepository
// and memstore.OrderStore.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByChannelID(ctx context.Context, channelID string) (*models.Order, error)
	LatestWithTutor(ctx context.Context, requester string) (*models.Order, error)
	UpdateIntake(ctx context.Context, order *models.Order) error
	Transition(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, mutate func(*models.Order)) (*models.Order, error)
	SubmitReview(ctx context.Context, review *models.Review) (*models.Order, error)
}

// TicketStore persists ticket channel records
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	Activate(ctx context.Context, id string, channelID string) error
	Close(ctx context.Context, id string, state models.TicketState) error
}

// BroadcastStore remembers every delivered copy of an order alert
type BroadcastStore interface {
	AddCopy(ctx context.Context, c *models.BroadcastCopy) error
	ListCopies(ctx context.Context, orderID string) ([]*models.BroadcastCopy, error)
}

// SubmissionStore persists reports, tutor applications and payment proofs
type SubmissionStore interface {
	CreateReport(ctx context.Context, report *models.Report) error
	CreateApplication(ctx context.Context, app *models.TutorApplication) error
	UpsertPayment(ctx context.Context, p *models.Payment) error
	VerifyPayment(ctx context.Context, student string, admin string) (*models.Payment, error)
}

// Limiter throttles actions per user
type Limiter interface {
	Allow(key string) bool
}

// storeError turns a store failure into an error the router can show
func storeError(err error, what string) error {
	var conflict *repository.StatusConflictError
	var invariant *models.InvariantError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError("❌ That " + what + " could not be found.").WithCause(err)
	case errors.As(err, &conflict):
		return apperrors.NewConflictError("⚠️ This " + what + " is already " + humanStatus(conflict.Current) + ".").
			WithCause(err)
	case errors.As(err, &invariant):
		return apperrors.NewConflictError("⚠️ That change is not allowed for this " + what + ".").WithCause(err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflictError("⚠️ This " + what + " already exists.").WithCause(err)
	default:
		return apperrors.NewTemporaryError("⚠️ We couldn't save your changes. Please try again later.").WithCause(err)
	}
}

// platformError keeps classified chat errors and wraps anything else
func platformError(err error) error {
	if _, ok := apperrors.UserMessage(err); ok {
		return err
	}
	return apperrors.NewTemporaryError("⚠️ Discord did not respond. Please try again later.").WithCause(err)
}

func humanStatus(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusPendingIntake:
		return "waiting for its order form"
	case models.OrderStatusInProgress:
		return "in progress"
	default:
		return string(s)
	}
}
