package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const ticketColumns = `id, kind, guild_id, channel_id, requester, name, sequence, state, created_at, closed_at`

// TicketRepository handles database operations for ticket channels
type TicketRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *database.Database, logger logger.Logger) *TicketRepository {
	return &TicketRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a ticket
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES (:id, :kind, :guild_id, :channel_id, :requester, :name, :sequence, :state, :created_at, :closed_at)
	`

	_, err := r.db.DB.NamedExecContext(ctx, query, ticket)

	if err != nil {
		r.logger.Error("Failed to create ticket", "error", err, "ticketID", ticket.ID)
		return dbError(err)
	}

	return nil
}

// GetByID retrieves a ticket by its ID
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.DB.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get ticket", "error", err, "ticketID", id)
		return nil, dbError(err)
	}

	return &ticket, nil
}

// Activate binds the ticket to its created channel
func (r *TicketRepository) Activate(ctx context.Context, id string, channelID string) error {
	return r.update(ctx, id, `
		UPDATE tickets SET channel_id = $1, state = $2
		WHERE id = $3 AND state = $4
	`, channelID, models.TicketStateActive, id, models.TicketStateCreating)
}

// Close moves an open ticket to a final state
func (r *TicketRepository) Close(ctx context.Context, id string, state models.TicketState) error {
	return r.update(ctx, id, `
		UPDATE tickets SET state = $1, closed_at = $2
		WHERE id = $3 AND state IN ($4, $5)
	`, state, models.GetCurrentTime(), id, models.TicketStateCreating, models.TicketStateActive)
}

func (r *TicketRepository) update(ctx context.Context, id string, query string, args ...interface{}) error {
	result, err := r.db.DB.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to update ticket", "error", err, "ticketID", id)
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
