package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/memstore"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/retry"
)

type recorder struct {
	failures int
	seen     []string
	headers  []map[string]string
}

func (r *recorder) HandleMessage(ctx context.Context, msg *models.OutboxMessage) error {
	r.seen = append(r.seen, msg.EventType)
	if r.failures > 0 {
		r.failures--
		return errors.New("broker unavailable")
	}
	return nil
}

func (r *recorder) SendMessage(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	r.headers = append(r.headers, headers)
	return r.HandleMessage(ctx, &models.OutboxMessage{EventType: headers["event_type"], AggregateID: key})
}

func seeded(t *testing.T) *memstore.Store {
	t.Helper()

	store := memstore.New(decimal.NewFromInt(20))
	order := models.NewOrder(&models.Ticket{ID: "t1", GuildID: "g", ChannelID: "chan-1", Requester: "student"})
	require.NoError(t, store.Orders.Create(context.Background(), order))
	require.Len(t, store.Outbox.All(), 1)

	return store
}

func newTestProcessor(store *memstore.Store, maxRetries int) *Processor {
	return NewProcessor(store.Outbox, store.DeadLetters, ProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      maxRetries,
	}, logger.NewNop())
}

func TestProcessorCompletesMessage(t *testing.T) {
	store := seeded(t)
	h := &recorder{}
	p := newTestProcessor(store, 3)
	p.RegisterHandler(models.EventOrderCreated, h)

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{models.EventOrderCreated}, h.seen)
	msg := store.Outbox.All()[0]
	assert.Equal(t, models.OutboxStatusCompleted, msg.Status)
	assert.NotNil(t, msg.ProcessedAt)
}

func TestProcessorRetriesThenSucceeds(t *testing.T) {
	store := seeded(t)
	h := &recorder{failures: 1}
	p := newTestProcessor(store, 3)
	p.RegisterHandler(models.EventOrderCreated, h)

	require.NoError(t, p.processBatch(context.Background()))
	msg := store.Outbox.All()[0]
	assert.Equal(t, models.OutboxStatusPending, msg.Status)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "broker unavailable", *msg.LastError)

	require.NoError(t, p.processBatch(context.Background()))
	msg = store.Outbox.All()[0]
	assert.Equal(t, models.OutboxStatusCompleted, msg.Status)
	assert.Equal(t, 2, msg.ProcessingAttempts)
}

func TestProcessorDeadLettersAfterMaxRetries(t *testing.T) {
	store := seeded(t)
	h := &recorder{failures: 10}
	p := newTestProcessor(store, 2)
	p.RegisterHandler(models.EventOrderCreated, h)

	ctx := context.Background()
	require.NoError(t, p.processBatch(ctx))
	require.NoError(t, p.processBatch(ctx))
	require.NoError(t, p.processBatch(ctx))

	assert.Len(t, h.seen, 2)
	assert.Equal(t, models.OutboxStatusFailed, store.Outbox.All()[0].Status)

	dead, err := store.DeadLetters.List(ctx, models.DeadLetterStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, ReasonMaxRetries, dead[0].FailureReason)
	assert.Equal(t, "broker unavailable", dead[0].ErrorMessage)
	assert.Equal(t, models.EventOrderCreated, dead[0].EventType)
}

func TestProcessorWithoutHandlerDeadLetters(t *testing.T) {
	store := seeded(t)
	p := newTestProcessor(store, 3)

	ctx := context.Background()
	require.NoError(t, p.processBatch(ctx))

	dead, err := store.DeadLetters.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, ReasonNoHandler, dead[0].FailureReason)
}

func TestDeadLetterProcessorReplays(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	p := newTestProcessor(store, 1)
	p.RegisterHandler(models.EventOrderCreated, &recorder{failures: 1})
	require.NoError(t, p.processBatch(ctx))

	h := &recorder{}
	dlp := NewDeadLetterProcessor(store.DeadLetters, DeadLetterProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      2,
		BackoffStrategy: &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.NewNop())
	dlp.RegisterHandler(models.EventOrderCreated, h)

	require.NoError(t, dlp.processBatch(ctx))

	assert.Equal(t, []string{models.EventOrderCreated}, h.seen)
	dead, err := store.DeadLetters.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, models.DeadLetterStatusResolved, dead[0].Status)
	assert.Equal(t, 1, dead[0].RetryCount)
}

func TestDeadLetterProcessorDiscards(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	p := newTestProcessor(store, 1)
	p.RegisterHandler(models.EventOrderCreated, &recorder{failures: 1})
	require.NoError(t, p.processBatch(ctx))

	h := &recorder{failures: 5}
	dlp := NewDeadLetterProcessor(store.DeadLetters, DeadLetterProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      2,
		BackoffStrategy: &retry.ConstantBackoff{Interval: time.Millisecond},
	}, logger.NewNop())
	dlp.RegisterHandler(models.EventOrderCreated, h)

	require.NoError(t, dlp.processBatch(ctx))

	assert.Len(t, h.seen, 2)
	dead, err := store.DeadLetters.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusDiscarded, dead[0].Status)
	assert.Contains(t, dead[0].FailureReason, "Discarded")
}

func TestProcessorStartStop(t *testing.T) {
	store := seeded(t)
	h := &recorder{}
	p := NewProcessor(store.Outbox, store.DeadLetters, ProcessorConfig{
		PollingInterval: 10 * time.Millisecond,
		BatchSize:       10,
		MaxRetries:      3,
	}, logger.NewNop())
	p.RegisterHandler(models.EventOrderCreated, h)

	p.Start()
	p.Start()
	assert.Eventually(t, func() bool {
		return store.Outbox.All()[0].Status == models.OutboxStatusCompleted
	}, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()
}

func TestKafkaHandlerSetsHeaders(t *testing.T) {
	store := seeded(t)
	pub := &recorder{}
	h := NewKafkaHandler(pub, "hireatutor.orders", logger.NewNop())

	msg := store.Outbox.All()[0]
	require.NoError(t, h.HandleMessage(context.Background(), &msg))

	require.Len(t, pub.headers, 1)
	assert.Equal(t, models.EventOrderCreated, pub.headers[0]["event_type"])
	assert.Equal(t, "order", pub.headers[0]["aggregate_type"])
}

func TestFanoutStopsAtFirstError(t *testing.T) {
	first := &recorder{failures: 1}
	second := &recorder{}

	err := Fanout{first, second}.HandleMessage(context.Background(), &models.OutboxMessage{EventType: "x"})

	assert.Error(t, err)
	assert.Empty(t, second.seen)
	assert.NoError(t, NewLoggingHandler(logger.NewNop()).HandleMessage(context.Background(),
		&models.OutboxMessage{Payload: []byte(`{"event_type":"x"}`)}))
}
