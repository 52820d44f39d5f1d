package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/internal/repository"
	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
	"github.com/vaidashi/hire-a-tutor/pkg/middleware"
)

// OrderReader is the read side of the order store
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*models.Order, error)
}

// ReviewReader looks up the review left on an order
type ReviewReader interface {
	GetByOrderID(ctx context.Context, orderID string) (*models.Review, error)
}

// DeadLetterAdmin is the operator view of the dead letter queue
type DeadLetterAdmin interface {
	List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]*models.DeadLetterMessage, error)
	GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	ResetToPending(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}

// Limits describes a per-user limiter for the rate limit endpoint
type Limits struct {
	MaxTokens  float64    `json:"max_tokens"`
	RefillRate float64    `json:"refill_rate"`
	Tracked    func() int `json:"-"`
}

// Deps are the components the admin API reads and operates
type Deps struct {
	Orders      OrderReader
	Reviews     ReviewReader
	DeadLetters DeadLetterAdmin
	Breakers    []*circuitbreaker.CircuitBreaker
	Limits      map[string]Limits
}

// Config configures the HTTP listener
type Config struct {
	Port       int
	AdminToken string
	Version    string
	// RequestsPerMinute throttles each client address. Zero disables it.
	RequestsPerMinute float64
}

// Server is the operator HTTP API
type Server struct {
	config      Config
	deps        Deps
	logger      logger.Logger
	router      *mux.Router
	httpServer  *http.Server
	rateLimiter *middleware.RateLimiterMiddleware
	started     time.Time
}

// NewServer creates a new API server
func NewServer(cfg Config, deps Deps, logger logger.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		started: models.GetCurrentTime(),
	}

	if cfg.RequestsPerMinute > 0 {
		s.rateLimiter = middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			MaxTokens:  cfg.RequestsPerMinute,
			RefillRate: cfg.RequestsPerMinute / 60,
		}, logger)
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Middleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.Use(middleware.RequireToken(s.config.AdminToken, s.logger))

	admin.HandleFunc("/orders", s.getOrdersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", s.getOrderByIDHandler).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/review", s.getOrderReviewHandler).Methods(http.MethodGet)

	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)

	admin.HandleFunc("/circuit-breakers", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers/{name}/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)

	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
