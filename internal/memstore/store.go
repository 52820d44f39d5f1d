// Package memstore keeps every record in process memory. It backs local
// runs without Postgres and the service tests, and returns the same
// errors as the repository package.
package memstore

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vaidashi/hire-a-tutor/internal/models"
)

// Store holds all records behind one mutex. The typed views (Orders,
// Tickets, ...) mirror the repository constructors.
type Store struct {
	mu            sync.Mutex
	minimumBudget decimal.Decimal

	orders       map[string]*models.Order
	tickets      map[string]*models.Ticket
	reviews      map[string]*models.Review
	copies       map[string][]*models.BroadcastCopy
	reports      []*models.Report
	applications []*models.TutorApplication
	payments     map[string]*models.Payment
	outbox       []*models.OutboxMessage
	deadLetters  []*models.DeadLetterMessage
	outboxSeq    int64
	deadSeq      int64

	Orders      *OrderStore
	Tickets     *TicketStore
	Broadcasts  *BroadcastStore
	Reviews     *ReviewStore
	Submissions *SubmissionStore
	Outbox      *OutboxStore
	DeadLetters *DeadLetterStore
}

// New creates an empty store
func New(minimumBudget decimal.Decimal) *Store {
	s := &Store{
		minimumBudget: minimumBudget,
		orders:        make(map[string]*models.Order),
		tickets:       make(map[string]*models.Ticket),
		reviews:       make(map[string]*models.Review),
		copies:        make(map[string][]*models.BroadcastCopy),
		payments:      make(map[string]*models.Payment),
	}

	s.Orders = &OrderStore{s: s}
	s.Tickets = &TicketStore{s: s}
	s.Broadcasts = &BroadcastStore{s: s}
	s.Reviews = &ReviewStore{s: s}
	s.Submissions = &SubmissionStore{s: s}
	s.Outbox = &OutboxStore{s: s}
	s.DeadLetters = &DeadLetterStore{s: s}

	return s
}

// appendEvent must be called with mu held
func (s *Store) appendEvent(msg *models.OutboxMessage) {
	s.outboxSeq++
	msg.ID = s.outboxSeq
	s.outbox = append(s.outbox, msg)
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.AssignedTutor != nil {
		tutor := *o.AssignedTutor
		c.AssignedTutor = &tutor
	}
	return &c
}

func cloneTicket(t *models.Ticket) *models.Ticket {
	c := *t
	return &c
}
