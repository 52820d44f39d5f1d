package main

import (
	"context"
	"fmt"

	"github.com/vaidashi/hire-a-tutor/internal/api"
	"github.com/vaidashi/hire-a-tutor/internal/config"
	"github.com/vaidashi/hire-a-tutor/internal/database"
	"github.com/vaidashi/hire-a-tutor/internal/memstore"
	"github.com/vaidashi/hire-a-tutor/internal/outbox"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	"github.com/vaidashi/hire-a-tutor/internal/sequence"
	"github.com/vaidashi/hire-a-tutor/internal/service"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

type orderStore interface {
	service.OrderStore
	api.OrderReader
}

type deadLetterStore interface {
	outbox.DeadLetterStore
	api.DeadLetterAdmin
}

// stores is every persistence dependency, backed by Postgres or memory
type stores struct {
	orders      orderStore
	tickets     service.TicketStore
	broadcasts  service.BroadcastStore
	reviews     api.ReviewReader
	submissions service.SubmissionStore
	outbox      outbox.Store
	deadLetters deadLetterStore
	seq         sequence.Sequencer
	closers     []func() error
}

func (s *stores) Close(l logger.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			l.Error("Error closing store", "error", err)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config, l logger.Logger) (*stores, error) {
	var st *stores

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := memstore.New(cfg.Tickets.MinimumBudget)
		st = &stores{
			orders:      mem.Orders,
			tickets:     mem.Tickets,
			broadcasts:  mem.Broadcasts,
			reviews:     mem.Reviews,
			submissions: mem.Submissions,
			outbox:      mem.Outbox,
			deadLetters: mem.DeadLetters,
			seq:         sequence.NewMemory(),
		}
		l.Warn("Using the in-memory store; records are lost on restart")

	default:
		db, err := database.New(cfg, l)

		if err != nil {
			return nil, err
		}

		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, err
		}

		outboxRepo := repository.NewOutboxRepository(db, l)
		st = &stores{
			orders:      repository.NewOrderRepository(db, outboxRepo, cfg.Tickets.MinimumBudget, l),
			tickets:     repository.NewTicketRepository(db, l),
			broadcasts:  repository.NewBroadcastRepository(db, l),
			reviews:     repository.NewReviewRepository(db, l),
			submissions: repository.NewSubmissionRepository(db, l),
			outbox:      outboxRepo,
			deadLetters: repository.NewDeadLetterRepository(db, l),
			seq:         sequence.NewPostgres(db.DB),
			closers:     []func() error{db.Close},
		}
	}

	if cfg.Redis.Addr != "" {
		redisSeq, err := sequence.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

		if err != nil {
			st.Close(l)
			return nil, fmt.Errorf("ticket counter: %w", err)
		}

		st.seq = redisSeq
		st.closers = append(st.closers, redisSeq.Close)
		l.Info("Ticket numbers come from Redis", "addr", cfg.Redis.Addr)
	}

	return st, nil
}
