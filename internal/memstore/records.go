package memstore

import (
	"context"
	"fmt"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
)

// TicketStore is the in-memory counterpart of repository.TicketRepository
type TicketStore struct {
	s *Store
}

// Create inserts a ticket
func (r *TicketStore) Create(ctx context.Context, ticket *models.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tickets[ticket.ID]; exists {
		return fmt.Errorf("%w: ticket %s", repository.ErrDuplicate, ticket.ID)
	}
	r.s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

// GetByID retrieves a ticket by its ID
func (r *TicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(t), nil
}

// Activate binds a creating ticket to its channel
func (r *TicketStore) Activate(ctx context.Context, id string, channelID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok || t.State != models.TicketStateCreating {
		return repository.ErrNotFound
	}

	t.ChannelID = channelID
	t.State = models.TicketStateActive
	return nil
}

// Close moves an open ticket to a final state
func (r *TicketStore) Close(ctx context.Context, id string, state models.TicketState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok || t.IsClosed() {
		return repository.ErrNotFound
	}

	now := models.GetCurrentTime()
	t.State = state
	t.ClosedAt = &now
	return nil
}

// BroadcastStore records delivered order alerts
type BroadcastStore struct {
	s *Store
}

// AddCopy records one delivered alert
func (r *BroadcastStore) AddCopy(ctx context.Context, c *models.BroadcastCopy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.copies[c.OrderID] {
		if existing.MessageID == c.MessageID {
			return nil
		}
	}

	stored := *c
	r.s.copies[c.OrderID] = append(r.s.copies[c.OrderID], &stored)
	return nil
}

// ListCopies returns every alert delivered for orderID
func (r *BroadcastStore) ListCopies(ctx context.Context, orderID string) ([]*models.BroadcastCopy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.BroadcastCopy, 0, len(r.s.copies[orderID]))
	for _, c := range r.s.copies[orderID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// ReviewStore reads reviews written by OrderStore.SubmitReview
type ReviewStore struct {
	s *Store
}

// GetByOrderID retrieves the review left on an order
func (r *ReviewStore) GetByOrderID(ctx context.Context, orderID string) (*models.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	review, ok := r.s.reviews[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *review
	return &cp, nil
}

// SubmissionStore holds reports, tutor applications and payment proofs
type SubmissionStore struct {
	s *Store
}

// CreateReport stores a user report
func (r *SubmissionStore) CreateReport(ctx context.Context, report *models.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *report
	r.s.reports = append(r.s.reports, &cp)
	return nil
}

// Reports returns a snapshot of stored reports
func (r *SubmissionStore) Reports() []models.Report {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Report, len(r.s.reports))
	for i, rep := range r.s.reports {
		out[i] = *rep
	}
	return out
}

// CreateApplication stores a tutor application
func (r *SubmissionStore) CreateApplication(ctx context.Context, app *models.TutorApplication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *app
	r.s.applications = append(r.s.applications, &cp)
	return nil
}

// Applications returns a snapshot of stored applications
func (r *SubmissionStore) Applications() []models.TutorApplication {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.TutorApplication, len(r.s.applications))
	for i, app := range r.s.applications {
		out[i] = *app
	}
	return out
}

// UpsertPayment replaces the student's proof and clears verification
func (r *SubmissionStore) UpsertPayment(ctx context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p.Verified = false
	p.VerifiedBy = nil
	p.VerifiedAt = nil

	cp := *p
	r.s.payments[p.Student] = &cp
	return nil
}

// GetPayment retrieves the student's latest proof
func (r *SubmissionStore) GetPayment(ctx context.Context, student string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[student]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// VerifyPayment marks the student's proof as checked by admin
func (r *SubmissionStore) VerifyPayment(ctx context.Context, student string, admin string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[student]
	if !ok {
		return nil, repository.ErrNotFound
	}

	now := models.GetCurrentTime()
	p.Verified = true
	p.VerifiedBy = &admin
	p.VerifiedAt = &now

	cp := *p
	return &cp, nil
}
