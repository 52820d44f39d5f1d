package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

// MessageHandler publishes one outbox message
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// HandlerFunc adapts a function to MessageHandler
type HandlerFunc func(ctx context.Context, message *models.OutboxMessage) error

// HandleMessage calls f
func (f HandlerFunc) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	return f(ctx, message)
}

// Store is the outbox table. Implemented by repository.OutboxRepository
// and memstore.OutboxStore.
type Store interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	MarkAsProcessing(ctx context.Context, id int64) error
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
	ReturnToPending(ctx context.Context, id int64, errorMessage string) error
}

// DeadLetterStore receives events that ran out of attempts
type DeadLetterStore interface {
	Create(ctx context.Context, message *models.DeadLetterMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*models.DeadLetterMessage, error)
	MarkAsRetrying(ctx context.Context, id int64) error
	MarkAsResolved(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}

// Dead letter reasons
const (
	ReasonNoHandler  = "no handler"
	ReasonMaxRetries = "max retries reached"
)

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	// MaxRetries counts every attempt, the first included
	MaxRetries int
}

// Processor publishes pending outbox messages. A failed message goes back
// to pending until it has used MaxRetries attempts, then it is marked
// failed and copied to the dead letter store.
type Processor struct {
	outbox      Store
	deadLetters DeadLetterStore
	handlers    map[string]MessageHandler
	cfg         ProcessorConfig
	logger      logger.Logger
	poller      *poller
}

// NewProcessor creates a new Processor; deadLetters may be nil
func NewProcessor(outbox Store, deadLetters DeadLetterStore, cfg ProcessorConfig, logger logger.Logger) *Processor {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	p := &Processor{
		outbox:      outbox,
		deadLetters: deadLetters,
		handlers:    make(map[string]MessageHandler),
		cfg:         cfg,
		logger:      logger,
	}
	p.poller = &poller{name: "Outbox processor", interval: cfg.PollingInterval, tick: p.processBatch, logger: logger}

	return p
}

// RegisterHandler routes eventType to handler. Call it before Start.
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start polls in the background
func (p *Processor) Start() {
	p.poller.start("batchSize", p.cfg.BatchSize, "maxRetries", p.cfg.MaxRetries)
}

// Stop stops polling
func (p *Processor) Stop() {
	p.poller.stop()
}

func (p *Processor) processBatch(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, p.cfg.PollingInterval)
	defer cancel()

	messages, err := p.outbox.GetPendingMessages(ctx, p.cfg.BatchSize)

	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	for _, msg := range messages {
		if err := p.publish(ctx, msg); err != nil {
			p.logger.Warn("Outbox message not published",
				"error", err,
				"messageID", msg.ID,
				"orderID", msg.AggregateID,
				"eventType", msg.EventType)
		}
	}

	return nil
}

func (p *Processor) publish(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.outbox.MarkAsProcessing(ctx, msg.ID); err != nil {
		return fmt.Errorf("claim message: %w", err)
	}
	attempt := msg.ProcessingAttempts + 1

	handler, ok := p.handlers[msg.EventType]

	if !ok {
		err := fmt.Errorf("no handler registered for event type %q", msg.EventType)
		p.bury(ctx, msg, err, ReasonNoHandler)
		return err
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		if attempt >= p.cfg.MaxRetries {
			p.bury(ctx, msg, err, ReasonMaxRetries)
			return fmt.Errorf("attempt %d of %d: %w", attempt, p.cfg.MaxRetries, err)
		}

		if markErr := p.outbox.ReturnToPending(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("Failed to return message to pending", "error", markErr, "messageID", msg.ID)
		}
		return fmt.Errorf("attempt %d of %d: %w", attempt, p.cfg.MaxRetries, err)
	}

	if err := p.outbox.MarkAsCompleted(ctx, msg.ID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	p.logger.Debug("Outbox message published",
		"messageID", msg.ID,
		"orderID", msg.AggregateID,
		"eventType", msg.EventType,
		"attempt", attempt)

	return nil
}

// bury marks msg failed and copies it to the dead letter store
func (p *Processor) bury(ctx context.Context, msg *models.OutboxMessage, cause error, reason string) {
	if err := p.outbox.MarkAsFailed(ctx, msg.ID, cause.Error()); err != nil {
		p.logger.Error("Failed to mark message as failed", "error", err, "messageID", msg.ID)
	}

	if p.deadLetters == nil {
		return
	}

	if err := p.deadLetters.Create(ctx, models.NewDeadLetterMessage(msg, cause.Error(), reason)); err != nil {
		p.logger.Error("Failed to dead-letter message", "error", err, "messageID", msg.ID)
		return
	}

	p.logger.Warn("Message moved to dead letter queue",
		"messageID", msg.ID,
		"eventType", msg.EventType,
		"reason", reason)
}
