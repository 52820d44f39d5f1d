package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/retry"
)

// DeadLetterProcessorConfig holds the configuration for the DeadLetterProcessor
type DeadLetterProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	BackoffStrategy retry.BackoffStrategy
}

// DeadLetterProcessor replays pending dead letters. A replay that still
// fails after MaxRetries in-process attempts is discarded; operators can
// queue it again through the admin API.
type DeadLetterProcessor struct {
	deadLetters DeadLetterStore
	handlers    map[string]MessageHandler
	cfg         DeadLetterProcessorConfig
	logger      logger.Logger
	poller      *poller
}

// NewDeadLetterProcessor creates a new dead letter processor
func NewDeadLetterProcessor(deadLetters DeadLetterStore, cfg DeadLetterProcessorConfig, logger logger.Logger) *DeadLetterProcessor {
	if cfg.BackoffStrategy == nil {
		cfg.BackoffStrategy = retry.NewDefaultExponentialBackoff()
	}

	p := &DeadLetterProcessor{
		deadLetters: deadLetters,
		handlers:    make(map[string]MessageHandler),
		cfg:         cfg,
		logger:      logger,
	}
	p.poller = &poller{name: "Dead letter processor", interval: cfg.PollingInterval, tick: p.processBatch, logger: logger}

	return p
}

// RegisterHandler routes eventType to handler. Call it before Start.
func (p *DeadLetterProcessor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start polls in the background
func (p *DeadLetterProcessor) Start() {
	p.poller.start("batchSize", p.cfg.BatchSize, "maxRetries", p.cfg.MaxRetries)
}

// Stop stops polling
func (p *DeadLetterProcessor) Stop() {
	p.poller.stop()
}

func (p *DeadLetterProcessor) processBatch(ctx context.Context) error {
	messages, err := p.deadLetters.GetPendingMessages(ctx, p.cfg.BatchSize)

	if err != nil {
		return fmt.Errorf("failed to get pending dead letters: %w", err)
	}

	for _, msg := range messages {
		if err := p.replay(ctx, msg); err != nil {
			p.logger.Error("Dead letter replay failed",
				"error", err,
				"messageID", msg.ID,
				"orderID", msg.AggregateID,
				"eventType", msg.EventType,
				"retryCount", msg.RetryCount+1)
		}
	}

	return nil
}

func (p *DeadLetterProcessor) replay(ctx context.Context, msg *models.DeadLetterMessage) error {
	if err := p.deadLetters.MarkAsRetrying(ctx, msg.ID); err != nil {
		return fmt.Errorf("mark retrying: %w", err)
	}

	handler, ok := p.handlers[msg.EventType]

	if !ok {
		p.discard(ctx, msg.ID, "No handler available")
		return fmt.Errorf("no handler registered for event type %q", msg.EventType)
	}

	event := msg.ToOutboxMessage()

	err := retry.RetryWithDiscard(ctx, func() error {
		return handler.HandleMessage(ctx, event)
	}, &retry.RetryConfig{
		MaxAttempts:     p.cfg.MaxRetries,
		BackoffStrategy: p.cfg.BackoffStrategy,
		Logger:          p.logger,
	}, func(err error) error {
		p.discard(ctx, msg.ID, fmt.Sprintf("replay failed: %v", err))
		return err
	})

	if err != nil {
		return err
	}

	if err := p.deadLetters.MarkAsResolved(ctx, msg.ID); err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}

	p.logger.Info("Dead letter replayed",
		"messageID", msg.ID,
		"orderID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

func (p *DeadLetterProcessor) discard(ctx context.Context, id int64, reason string) {
	if err := p.deadLetters.MarkAsDiscarded(ctx, id, reason); err != nil {
		p.logger.Error("Failed to mark dead letter as discarded", "error", err, "messageID", id)
	}
}
