package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/retry"
)

// MessageHandler is the interface for handling messages from Kafka
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ConsumerConfig is the configuration for the Kafka consumer
type ConsumerConfig struct {
	Brokers       []string
	Topics        []string
	ConsumerGroup string
	// HandlerAttempts bounds the tries per record before it is skipped.
	// Zero means 3.
	HandlerAttempts int
}

// Consumer runs a consumer group and dispatches records by topic. A record
// whose handler keeps failing is logged and committed so it cannot stall
// its partition.
type Consumer struct {
	group    sarama.ConsumerGroup
	topics   []string
	handlers map[string]MessageHandler
	retry    *retry.RetryConfig
	logger   logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *ConsumerConfig, logger logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategySticky

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)

	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return newConsumer(group, cfg, logger), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg *ConsumerConfig, logger logger.Logger) *Consumer {
	attempts := cfg.HandlerAttempts
	if attempts < 1 {
		attempts = 3
	}

	return &Consumer{
		group:    group,
		topics:   cfg.Topics,
		handlers: make(map[string]MessageHandler),
		retry: &retry.RetryConfig{
			MaxAttempts: attempts,
			BackoffStrategy: &retry.ExponentialBackoff{
				InitialInterval: 200 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2.0,
				JitterFactor:    0.2,
			},
			Logger: logger,
		},
		logger: logger,
	}
}

// RegisterHandler registers a message handler for a specific topic.
// Call it before Start.
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = handler
}

// Start joins the group in the background and rejoins after every
// rebalance until Stop
func (c *Consumer) Start() error {
	if len(c.topics) == 0 {
		return fmt.Errorf("no topics to consume")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(2)
	go c.consume(ctx)
	go c.drainErrors(ctx)

	c.logger.Info("Kafka consumer started", "topics", c.topics)
	return nil
}

// Stop leaves the group and closes it
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.group.Close()
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for ctx.Err() == nil {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			c.logger.Error("Kafka consumer error, rejoining", "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) drainErrors(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Warn("Kafka consumer group error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka partitions assigned", "memberID", session.MemberID(), "claims", session.Claims())
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			// A record abandoned by a rebalance is left for the next owner
			if !c.dispatch(session.Context(), msg) {
				return nil
			}
			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// dispatch hands msg to its topic handler, retrying failures with backoff.
// It reports whether msg is settled: handled, or given up on while ctx was
// still live. A failure caused by ctx ending leaves msg unsettled.
func (c *Consumer) dispatch(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	handler, ok := c.handlers[msg.Topic]

	if !ok {
		c.logger.Warn("No handler registered for topic", "topic", msg.Topic)
		return true
	}

	err := retry.Retry(ctx, func() error {
		return handler.HandleMessage(ctx, msg)
	}, c.retry)

	if err != nil && ctx.Err() != nil {
		c.logger.Info("Kafka record left uncommitted, session ended",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset)
		return false
	}

	if err != nil {
		c.logger.Error("Skipping Kafka record after failed attempts",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"eventType", Header(msg, "event_type"))
		return true
	}

	c.logger.Debug("Kafka record handled",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset)
	return true
}
