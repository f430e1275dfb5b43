// Package http exposes the goal ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"savings/internal/core"
	"savings/internal/log"
	"savings/internal/middleware/ratelimit"
	"savings/internal/middleware/security"
	"savings/internal/middleware/trace"
)

// GoalLedger is the subset of the ledger the API serves.
type GoalLedger interface {
	CreateGoal(ctx context.Context, userID, name string, target decimal.Decimal, currency, description string) (core.GoalView, error)
	AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.GoalView, error)
	ConvertGoalCurrency(ctx context.Context, userID, goalID, newCurrency string) (core.GoalView, error)
	GetGoal(ctx context.Context, userID, goalID string) (core.GoalView, error)
	GetAllGoals(ctx context.Context, userID string) []core.GoalView
}

// CurrencyLister reports which currency codes can be used.
type CurrencyLister interface {
	Currencies() []string
}

type Server struct {
	http.Server
	ledger     GoalLedger
	currencies CurrencyLister
	logger     *log.Logger
	limiter    *ratelimit.Limiter

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithCurrencies enables GET /currencies.
func WithCurrencies(c CurrencyLister) Option {
	return func(s *Server) { s.currencies = c }
}

// WithRateLimit throttles mutating requests per client.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, l GoalLedger, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		ledger: l,
		logger: logger.WithComponent(log.ComponentHTTP),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("POST /users/{user}/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /users/{user}/goals", s.handleListGoals)
	mux.HandleFunc("GET /users/{user}/goals/{goal}", s.handleGetGoal)
	mux.HandleFunc("POST /users/{user}/goals/{goal}/contributions", s.handleAddContribution)
	mux.HandleFunc("POST /users/{user}/goals/{goal}/currency", s.handleConvertGoal)
	if s.currencies != nil {
		mux.HandleFunc("GET /currencies", s.handleCurrencies)
	}

	detector := security.NewDetector()
	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			NewJSONResponse().Status(http.StatusTooManyRequests).Error("rate limit exceeded").Write(w)
		})(handler)
	}
	handler = security.Headers(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = trace.NewMiddleware(detector.ExtractClientIP).Handler(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}
