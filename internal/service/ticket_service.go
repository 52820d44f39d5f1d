package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaidashi/hire-a-tutor/internal/chat"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/sequence"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// TicketConfig says where ticket channels go
type TicketConfig struct {
	GuildID             string
	OrderCategoryID     string
	ReportCategory      string
	ApplicationCategory string
	DeleteOnComplete    bool
}

// OpenTicketRequest asks for a private channel for one requester
type OpenTicketRequest struct {
	Kind          models.TicketKind
	Requester     string
	RequesterName string
}

// TicketService creates and tears down private ticket channels
type TicketService struct {
	platform chat.Platform
	tickets  TicketStore
	seq      sequence.Sequencer
	cfg      TicketConfig
	logger   logger.Logger
}

// NewTicketService creates a new TicketService
func NewTicketService(
	platform chat.Platform,
	tickets TicketStore,
	seq sequence.Sequencer,
	cfg TicketConfig,
	logger logger.Logger,
) *TicketService {
	return &TicketService{
		platform: platform,
		tickets:  tickets,
		seq:      seq,
		cfg:      cfg,
		logger:   logger,
	}
}

// Open creates the ticket record and its private channel. The channel is
// visible to the requester, the bot and administrators only.
func (s *TicketService) Open(ctx context.Context, req OpenTicketRequest) (*models.Ticket, error) {
	categoryID, err := s.category(ctx, req.Kind)
	if err != nil {
		return nil, err
	}

	slug := channelSlug(req.RequesterName)
	n, err := s.seq.Next(ctx, string(req.Kind)+":"+req.Requester)

	if err != nil {
		s.logger.Error("Failed to allocate ticket number", "error", err, "requester", req.Requester)
		return nil, apperrors.NewTemporaryError("⚠️ We couldn't open a ticket right now. Please try again later.").WithCause(err)
	}

	ticket := &models.Ticket{
		ID:        models.NewRecordID(),
		Kind:      req.Kind,
		GuildID:   s.cfg.GuildID,
		Requester: req.Requester,
		Name:      fmt.Sprintf("%s%s-%d", req.Kind.ChannelPrefix(), slug, n),
		Sequence:  n,
		State:     models.TicketStateCreating,
		CreatedAt: models.GetCurrentTime(),
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(err, "ticket")
	}

	channelID, err := s.platform.CreatePrivateChannel(ctx, chat.ChannelSpec{
		GuildID:    s.cfg.GuildID,
		Name:       ticket.Name,
		CategoryID: categoryID,
		Members:    []string{req.Requester},
	})

	if err != nil {
		s.logger.Error("Failed to create ticket channel", "error", err, "ticketID", ticket.ID, "name", ticket.Name)
		s.markCancelled(ctx, ticket.ID)
		return nil, platformError(err)
	}

	if err := s.tickets.Activate(ctx, ticket.ID, channelID); err != nil {
		s.logger.Error("Failed to activate ticket, removing channel", "error", err, "ticketID", ticket.ID)
		if delErr := s.platform.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.Error("Failed to remove orphaned channel", "error", delErr, "channelID", channelID)
		}
		s.markCancelled(ctx, ticket.ID)
		return nil, storeError(err, "ticket")
	}

	ticket.ChannelID = channelID
	ticket.State = models.TicketStateActive

	s.logger.Info("Ticket opened",
		"ticketID", ticket.ID,
		"kind", ticket.Kind,
		"channelID", channelID,
		"requester", req.Requester)

	return ticket, nil
}

// Close records the outcome and removes the channel. Cancelled tickets
// always lose their channel; completed ones only when DeleteOnComplete is set.
func (s *TicketService) Close(ctx context.Context, ticket *models.Ticket, outcome models.TicketState) error {
	if outcome != models.TicketStateCompleted && outcome != models.TicketStateCancelled {
		return fmt.Errorf("invalid ticket outcome %q", outcome)
	}

	if ticket.ChannelID != "" && (outcome == models.TicketStateCancelled || s.cfg.DeleteOnComplete) {
		if err := s.platform.DeleteChannel(ctx, ticket.ChannelID); err != nil {
			s.logger.Warn("Failed to delete ticket channel", "error", err, "ticketID", ticket.ID, "channelID", ticket.ChannelID)
		}
	}

	if err := s.tickets.Close(ctx, ticket.ID, outcome); err != nil {
		return storeError(err, "ticket")
	}

	ticket.State = outcome
	s.logger.Info("Ticket closed", "ticketID", ticket.ID, "outcome", outcome)
	return nil
}

// CloseByID loads the ticket and closes it
func (s *TicketService) CloseByID(ctx context.Context, ticketID string, outcome models.TicketState) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return storeError(err, "ticket")
	}

	if ticket.IsClosed() {
		return nil
	}
	return s.Close(ctx, ticket, outcome)
}

func (s *TicketService) markCancelled(ctx context.Context, ticketID string) {
	if err := s.tickets.Close(ctx, ticketID, models.TicketStateCancelled); err != nil {
		s.logger.Warn("Failed to mark ticket cancelled", "error", err, "ticketID", ticketID)
	}
}

func (s *TicketService) category(ctx context.Context, kind models.TicketKind) (string, error) {
	switch kind {
	case models.TicketKindOrder:
		ok, err := s.platform.CategoryExists(ctx, s.cfg.GuildID, s.cfg.OrderCategoryID)
		if err != nil {
			return "", platformError(err)
		}
		if !ok {
			s.logger.Error("Order category is missing", "categoryID", s.cfg.OrderCategoryID)
			return "", apperrors.NewNotFoundError("⚠️ The order category is missing. Please contact an administrator.")
		}
		return s.cfg.OrderCategoryID, nil
	case models.TicketKindReport:
		return s.ensureCategory(ctx, s.cfg.ReportCategory)
	case models.TicketKindApplication:
		return s.ensureCategory(ctx, s.cfg.ApplicationCategory)
	default:
		return "", fmt.Errorf("unknown ticket kind %q", kind)
	}
}

func (s *TicketService) ensureCategory(ctx context.Context, name string) (string, error) {
	id, err := s.platform.EnsureCategory(ctx, s.cfg.GuildID, name)

	if err != nil {
		s.logger.Error("Failed to ensure category", "error", err, "category", name)
		return "", platformError(err)
	}
	return id, nil
}

// channelSlug lowercases name and keeps only characters Discord allows
func channelSlug(name string) string {
	var b strings.Builder
	dash := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "user"
	}
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}
