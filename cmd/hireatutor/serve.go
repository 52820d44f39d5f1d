package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaidashi/hire-a-tutor/internal/api"
	"github.com/vaidashi/hire-a-tutor/internal/bot"
	"github.com/vaidashi/hire-a-tutor/internal/budget"
	"github.com/vaidashi/hire-a-tutor/internal/chat/discord"
	"github.com/vaidashi/hire-a-tutor/internal/config"
	"github.com/vaidashi/hire-a-tutor/internal/handlers"
	"github.com/vaidashi/hire-a-tutor/internal/health"
	"github.com/vaidashi/hire-a-tutor/internal/intake"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/outbox"
	"github.com/vaidashi/hire-a-tutor/internal/service"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	"github.com/vaidashi/hire-a-tutor/pkg/kafka"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/ratelimit"
	"github.com/vaidashi/hire-a-tutor/pkg/retry"
)

// Per-user limit on opening tickets from the panel
const (
	panelBurst      = 3
	panelRefillRate = 1.0 / 20 // one token every 20s
	panelIdleTTL    = 30 * time.Minute
)

// How long shutdown waits for cancelled intakes to close their tickets
const handlerDrainTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and serve the admin API",
	RunE:  runServe,
}

func newDiscordBreaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		Name:             "discord",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	})
}

// events is the outbox pipeline and, with Kafka, the audit consumer
type events struct {
	processor   *outbox.Processor
	deadLetters *outbox.DeadLetterProcessor
	producer    *kafka.Producer
	consumer    *kafka.Consumer
}

func startEvents(cfg *config.Config, st *stores, audit *handlers.AuditLogHandler, l logger.Logger) (*events, error) {
	ev := &events{
		processor: outbox.NewProcessor(st.outbox, st.deadLetters, outbox.ProcessorConfig{
			PollingInterval: 5 * time.Second,
			BatchSize:       10,
			MaxRetries:      3,
		}, l),
		deadLetters: outbox.NewDeadLetterProcessor(st.deadLetters, outbox.DeadLetterProcessorConfig{
			PollingInterval: 30 * time.Second,
			BatchSize:       5,
			MaxRetries:      5,
			BackoffStrategy: &retry.ExponentialBackoff{
				InitialInterval: time.Second,
				MaxInterval:     2 * time.Minute,
				Multiplier:      2.0,
				JitterFactor:    0.1,
			},
		}, l),
	}

	var publish outbox.MessageHandler

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, l)

		if err != nil {
			return nil, err
		}
		ev.producer = producer
		publish = outbox.NewKafkaHandler(producer, cfg.Kafka.OrdersTopic, l)

		consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.OrdersTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, l)

		if err != nil {
			producer.Close()
			return nil, err
		}
		consumer.RegisterHandler(cfg.Kafka.OrdersTopic, audit)
		ev.consumer = consumer
	} else {
		l.Info("Kafka not configured, events go straight to the audit channel")
		publish = outbox.Fanout{
			outbox.NewLoggingHandler(l),
			outbox.HandlerFunc(audit.HandleOutboxMessage),
		}
	}

	for _, eventType := range models.EventTypes {
		ev.processor.RegisterHandler(eventType, publish)
		ev.deadLetters.RegisterHandler(eventType, publish)
	}

	ev.processor.Start()
	ev.deadLetters.Start()

	if ev.consumer != nil {
		if err := ev.consumer.Start(); err != nil {
			l.Error("Failed to start Kafka consumer", "error", err)
		}
	}

	return ev, nil
}

func (ev *events) Stop(l logger.Logger) {
	ev.processor.Stop()
	ev.deadLetters.Stop()

	if ev.consumer != nil {
		if err := ev.consumer.Stop(); err != nil {
			l.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if ev.producer != nil {
		if err := ev.producer.Close(); err != nil {
			l.Error("Error closing Kafka producer", "error", err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, l, err := bootstrap(true)

	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("Starting hire-a-tutor", "version", version, "env", cfg.Env, "store", cfg.StoreDriver)

	st, err := openStores(ctx, cfg, l)

	if err != nil {
		return err
	}
	defer st.Close(l)

	parser, err := budget.LoadParser(cfg.Tickets.RatesFile)

	if err != nil {
		return fmt.Errorf("config: CURRENCY_RATES_FILE: %w", err)
	}

	breaker := newDiscordBreaker()
	client, err := discord.NewClient(cfg.Discord.Token, breaker, l)

	if err != nil {
		return err
	}

	limiter := ratelimit.NewKeyedLimiter(panelBurst, panelRefillRate, panelIdleTTL)
	defer limiter.Stop()

	svc, err := buildServices(cfg, st, client, parser, limiter, l)

	if err != nil {
		return err
	}

	router := bot.NewRouter(client, svc, bot.Config{
		PanelChannel:     cfg.Discord.PanelChannel,
		MainChannel:      cfg.Discord.MainChannel,
		PostPanelOnReady: true,
	}, l)

	client.Listen(ctx, cfg.Discord.Prefix, router)

	if err := client.Open(); err != nil {
		return err
	}
	defer client.Close()

	audit := handlers.NewAuditLogHandler(client, cfg.Discord.GuildID, cfg.Discord.AuditChannel, l)
	ev, err := startEvents(cfg, st, audit, l)

	if err != nil {
		return err
	}
	defer ev.Stop(l)

	heartbeat := health.NewHeartbeat(client, cfg.Discord.GuildID,
		cfg.Discord.HeartbeatChannel, cfg.Discord.HeartbeatInterval, l)
	heartbeat.Start()
	defer heartbeat.Stop()

	server := api.NewServer(api.Config{
		Port:              cfg.Port,
		AdminToken:        cfg.AdminToken,
		Version:           version,
		RequestsPerMinute: 120,
	}, api.Deps{
		Orders:      st.orders,
		Reviews:     st.reviews,
		DeadLetters: st.deadLetters,
		Breakers:    []*circuitbreaker.CircuitBreaker{breaker},
		Limits: map[string]api.Limits{
			"panel": {MaxTokens: panelBurst, RefillRate: panelRefillRate, Tracked: limiter.Len},
		},
	}, l)

	serverErr := make(chan error, 1)

	go func() {
		l.Info("Admin API listening", "port", cfg.Port)

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		l.Info("Shutting down...")
	case err := <-serverErr:
		l.Error("Admin API failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("Server forced to shutdown", "error", err)
	}

	// Stores, events and the client are closed by the deferred calls only
	// after handlers have finished.
	stop()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), handlerDrainTimeout)
	defer cancelDrain()

	if err := client.Wait(drainCtx); err != nil {
		l.Error("Event handlers still running at shutdown", "error", err)
	}

	return nil
}

func buildServices(
	cfg *config.Config,
	st *stores,
	client *discord.Client,
	parser *budget.Parser,
	limiter service.Limiter,
	l logger.Logger,
) (bot.Services, error) {
	engine := intake.NewEngine(client, parser, cfg.Tickets.MinimumBudget, cfg.Tickets.IntakeTimeout, l)
	forms := intake.DefaultForms()

	tickets := service.NewTicketService(client, st.tickets, st.seq, service.TicketConfig{
		GuildID:             cfg.Discord.GuildID,
		OrderCategoryID:     cfg.Tickets.OrderCategoryID,
		ReportCategory:      cfg.Tickets.ReportCategory,
		ApplicationCategory: cfg.Tickets.ApplicationCategory,
		DeleteOnComplete:    cfg.Tickets.DeleteOnComplete,
	}, l)

	matching := service.NewMatchingService(client, st.orders, st.broadcasts, service.MatchingConfig{
		GuildID:      cfg.Discord.GuildID,
		TutorRoleID:  cfg.Discord.TutorRoleID,
		TutorChannel: cfg.Discord.TutorChannel,
	}, l)

	reports, err := service.NewReportService(client, tickets, engine, forms, st.submissions, limiter, l)

	if err != nil {
		return bot.Services{}, err
	}

	applications, err := service.NewApplicationService(client, tickets, engine, forms, st.submissions, limiter, l)

	if err != nil {
		return bot.Services{}, err
	}

	payments, err := service.NewPaymentService(client, st.orders, st.submissions, engine, forms, l)

	if err != nil {
		return bot.Services{}, err
	}

	return bot.Services{
		Orders:   service.NewOrderService(client, st.orders, tickets, engine, forms, matching, limiter, l),
		Matching: matching,
		Progress: service.NewProgressService(client, st.orders, tickets, service.ProgressConfig{
			GuildID:       cfg.Discord.GuildID,
			ReviewChannel: cfg.Discord.ReviewChannel,
			AdminChannel:  cfg.Discord.AdminChannel,
			AdminRoleID:   cfg.Discord.AdminRoleID,
		}, l),
		Reports:      reports,
		Applications: applications,
		Payments:     payments,
		Panel:        service.NewPanelService(client, cfg.Discord.GuildID, l),
	}, nil
}
