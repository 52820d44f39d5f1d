package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/budget"
	"github.com/vaidashi/hire-a-tutor/internal/chat/chattest"
	"github.com/vaidashi/hire-a-tutor/internal/intake"
	"github.com/vaidashi/hire-a-tutor/internal/memstore"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	"github.com/vaidashi/hire-a-tutor/internal/sequence"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const (
	guildID     = "guild-1"
	tutorRole   = "role-tutor"
	adminRole   = "role-admin"
	student     = "1001"
	studentName = "Alice Smith"
)

type fixture struct {
	p     *chattest.Platform
	store *memstore.Store

	tickets  *TicketService
	orders   *OrderService
	matching *MatchingService
	progress *ProgressService
	reports  *ReportService
	apps     *ApplicationService
	payments *PaymentService
	panel    *PanelService

	tutorChannel  string
	reviewChannel string
	adminChannel  string
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()

	minimum := decimal.NewFromInt(20)
	log := logger.NewNop()
	p := chattest.New()
	store := memstore.New(minimum)
	forms := intake.DefaultForms()
	engine := intake.NewEngine(p, budget.DefaultParser(), minimum, timeout, log)

	f := &fixture{
		p:             p,
		store:         store,
		tutorChannel:  p.AddTextChannel("tutor-chat"),
		reviewChannel: p.AddTextChannel("review"),
		adminChannel:  p.AddTextChannel("admin"),
	}
	p.AddTextChannel("paid-help-test")

	f.tickets = NewTicketService(p, store.Tickets, sequence.NewMemory(), TicketConfig{
		GuildID:             guildID,
		OrderCategoryID:     p.AddCategory("Orders"),
		ReportCategory:      "User Reports",
		ApplicationCategory: "Tutor Applications",
		DeleteOnComplete:    true,
	}, log)

	f.matching = NewMatchingService(p, store.Orders, store.Broadcasts, MatchingConfig{
		GuildID:      guildID,
		TutorRoleID:  tutorRole,
		TutorChannel: "tutor-chat",
	}, log)

	f.orders = NewOrderService(p, store.Orders, f.tickets, engine, forms, f.matching, nil, log)

	f.progress = NewProgressService(p, store.Orders, f.tickets, ProgressConfig{
		GuildID:       guildID,
		ReviewChannel: "review",
		AdminChannel:  "admin",
		AdminRoleID:   adminRole,
	}, log)

	var err error
	f.reports, err = NewReportService(p, f.tickets, engine, forms, store.Submissions, nil, log)
	require.NoError(t, err)
	f.apps, err = NewApplicationService(p, f.tickets, engine, forms, store.Submissions, nil, log)
	require.NoError(t, err)
	f.payments, err = NewPaymentService(p, store.Orders, store.Submissions, engine, forms, log)
	require.NoError(t, err)
	f.panel = NewPanelService(p, guildID, log)

	return f
}

// intakeOrder runs the order form with the given budget answer
func (f *fixture) intakeOrder(t *testing.T, budgetAnswer string) *models.Order {
	t.Helper()

	f.p.Script(student, "Assignment", "Calculus, first year", "Friday", budgetAnswer, "none")

	order, err := f.orders.Start(context.Background(), StartRequest{UserID: student, UserName: studentName}, &chattest.Responder{})
	require.NoError(t, err)
	return order
}

// openOrder returns an order broadcast to tutors t1 and t2
func (f *fixture) openOrder(t *testing.T) *models.Order {
	t.Helper()

	f.p.GiveRole(tutorRole, "t1", "t2")
	order := f.intakeOrder(t, "$25")

	order, err := f.orders.FindTutor(context.Background(), order.ID, student)
	require.NoError(t, err)
	return order
}

// deliveredOrder returns an order claimed by t1 and delivered
func (f *fixture) deliveredOrder(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()

	order := f.openOrder(t)

	res, _, err := f.matching.Claim(ctx, order.ID, "t1")
	require.NoError(t, err)
	require.Equal(t, ClaimAccepted, res)

	_, err = f.progress.StartWork(ctx, order.ID, "t1", "")
	require.NoError(t, err)
	order, err = f.progress.Deliver(ctx, order.ID, "t1", "")
	require.NoError(t, err)
	return order
}

func (f *fixture) order(t *testing.T, id string) *models.Order {
	t.Helper()

	o, err := f.store.Orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) allOrders(t *testing.T) []*models.Order {
	t.Helper()

	orders, err := f.store.Orders.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	return orders
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }
