package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/hire-a-tutor/internal/memstore"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/middleware"
)

const token = "s3cret"

type harness struct {
	store   *memstore.Store
	breaker *circuitbreaker.CircuitBreaker
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memstore.New(decimal.NewFromInt(20))
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		Name:             "discord",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		HalfOpenMaxCalls: 1,
	})

	s := NewServer(Config{Port: 0, AdminToken: token, Version: "test"}, Deps{
		Orders:      store.Orders,
		Reviews:     store.Reviews,
		DeadLetters: store.DeadLetters,
		Breakers:    []*circuitbreaker.CircuitBreaker{breaker},
		Limits: map[string]Limits{
			"intake": {MaxTokens: 3, RefillRate: 0.05, Tracked: func() int { return 2 }},
		},
	}, logger.NewNop())

	return &harness{store: store, breaker: breaker, handler: s.Handler()}
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, ApiResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(middleware.AdminTokenHeader, token)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var resp ApiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (h *harness) order(t *testing.T, channel string) *models.Order {
	t.Helper()

	order := models.NewOrder(&models.Ticket{ID: "t-" + channel, GuildID: "g", ChannelID: channel, Requester: "1001"})
	require.NoError(t, h.store.Orders.Create(context.Background(), order))
	return order
}

func (h *harness) deadLetter(t *testing.T) *models.DeadLetterMessage {
	t.Helper()

	h.order(t, "dl")
	msg := h.store.Outbox.All()[len(h.store.Outbox.All())-1]
	dead := models.NewDeadLetterMessage(&msg, "broker down", "max retries reached")
	require.NoError(t, h.store.DeadLetters.Create(context.Background(), dead))
	return dead
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealthDegradedWhileBreakerOpen(t *testing.T) {
	h := newHarness(t)
	h.breaker.Failure()

	_, resp := h.do(t, http.MethodGet, "/api/v1/health", "")
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
}

func TestAdminRequiresToken(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndGetOrders(t *testing.T) {
	h := newHarness(t)
	first := h.order(t, "c1")
	h.order(t, "c2")

	rec, resp := h.do(t, http.MethodGet, "/api/v1/admin/orders?status=pending_intake", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 2)

	rec, resp = h.do(t, http.MethodGet, "/api/v1/admin/orders/"+first.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, resp.Data.(map[string]interface{})["id"])

	rec, _ = h.do(t, http.MethodGet, "/api/v1/admin/orders/"+first.ID+"/review", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/admin/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/admin/orders?status=shipped", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeadLetterRetryAndDiscard(t *testing.T) {
	h := newHarness(t)
	dead := h.deadLetter(t)
	ctx := context.Background()
	path := "/api/v1/admin/dead-letters/"

	rec, resp := h.do(t, http.MethodGet, path+"?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["count"])

	rec, _ = h.do(t, http.MethodPost, path+"1/discard", `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := h.store.DeadLetters.GetMessage(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusDiscarded, got.Status)
	assert.Contains(t, got.FailureReason, "duplicate")

	rec, _ = h.do(t, http.MethodPost, path+"1/retry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got, err = h.store.DeadLetters.GetMessage(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusPending, got.Status)

	require.NoError(t, h.store.DeadLetters.MarkAsResolved(ctx, dead.ID))
	rec, _ = h.do(t, http.MethodPost, path+"1/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = h.do(t, http.MethodPost, path+"99/retry", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodPost, path+"abc/retry", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCircuitBreakerReset(t *testing.T) {
	h := newHarness(t)
	h.breaker.Failure()
	require.Equal(t, circuitbreaker.StateOpen, h.breaker.GetState())

	rec, resp := h.do(t, http.MethodGet, "/api/v1/admin/circuit-breakers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", resp.Data.([]interface{})[0].(map[string]interface{})["state"])

	rec, _ = h.do(t, http.MethodPost, "/api/v1/admin/circuit-breakers/discord/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, circuitbreaker.StateClosed, h.breaker.GetState())

	rec, _ = h.do(t, http.MethodPost, "/api/v1/admin/circuit-breakers/kafka/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimits(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.do(t, http.MethodGet, "/api/v1/admin/rate-limits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	intake := resp.Data.(map[string]interface{})["intake"].(map[string]interface{})
	assert.EqualValues(t, 3, intake["max_tokens"])
	assert.EqualValues(t, 2, intake["tracked_users"])
}
