// Package http exposes the balance engine as a JSON API over gin.
package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/repository"
	"saldo/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Budgets    *services.BudgetService
	Ledger     *services.LedgerService
	Aggregator *services.Aggregator
	Alerts     repository.AlertStore
	Health     Pinger
	Hub        *BalanceHub
	Auth       *Authenticator
	Logger     *log.Logger
}

// Config holds server level settings.
type Config struct {
	Addr               string
	CORSOrigins        []string
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration

	// Now returns the current time for query defaults (default: time.Now in UTC).
	Now func() time.Time
}

type Server struct {
	http.Server
	deps    Deps
	engine  *gin.Engine
	limiter *ratelimit.Limiter
	now     func() time.Time
}

func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Hub == nil {
		deps.Hub = NewBalanceHub(deps.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		deps:    deps,
		engine:  gin.New(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		now:     cfg.Now,
	}
	s.routes(cfg)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes(cfg Config) {
	r := s.engine
	_ = r.SetTrustedProxies(security.TrustedProxies)

	r.Use(
		gin.Recovery(),
		log.Middleware(s.deps.Logger),
		trace.NewMiddleware(s.deps.Logger).Handler(),
		security.Headers(security.DefaultHeadersConfig()),
		security.NewDetector(s.deps.Logger).Middleware(),
		cors.New(corsConfig(cfg.CORSOrigins)),
		s.limiter.Middleware(),
	)

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	r.GET("/ws", s.deps.Auth.Middleware(true), s.deps.Hub.Handle)

	c := r.Group("/api/v1/clients/:clientID", s.deps.Auth.Middleware(false), requireClientAccess())
	{
		c.GET("/budgets", s.handleListBudgets)
		c.GET("/months/:year/:month", s.handleGetOrCreateBudget)
		c.GET("/budgets/:budgetID", s.handleGetBudget)
		c.PUT("/budgets/:budgetID/salary", s.handleUpdateSalary)
		c.PUT("/budgets/:budgetID/amount", s.handleUpdateBudgetAmount)
		c.DELETE("/budgets/:budgetID", requireRole(RoleManager, RoleAdmin), s.handleDeleteBudget)

		c.POST("/transactions", s.handleCreateTransaction)
		c.GET("/transactions", s.handleListTransactions)
		c.GET("/transactions/:transactionID", s.handleGetTransaction)
		c.PATCH("/transactions/:transactionID", s.handleUpdateTransaction)
		c.DELETE("/transactions/:transactionID", s.handleDeleteTransaction)

		c.GET("/expenses/daily", s.handleDailyExpenses)
		c.GET("/expenses/monthly", s.handleMonthlyExpenses)
		c.GET("/spending/:year/:month", s.handleMonthSpending)
		c.GET("/alerts", s.handleListAlerts)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", trace.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", trace.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case slices.Contains(origins, "*"):
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	case len(origins) == 0:
		cc.AllowOrigins = []string{"http://localhost:3000"}
	default:
		cc.AllowOrigins = origins
	}
	return cc
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// ListenAndServe serves until Shutdown; a clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes WebSocket sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	hubErr := s.deps.Hub.Close()
	return errors.Join(s.Server.Shutdown(ctx), hubErr)
}
