// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/server/handler"
	"github.com/alanyoungcy/marketengine/internal/server/middleware"
	"github.com/alanyoungcy/marketengine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	AdminAPIKey string // if empty, admin endpoints are disabled

	// RateLimiter guards the write endpoints when set.
	RateLimiter     domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Settlements *handler.SettlementHandler
	Treasury    *handler.TreasuryHandler
	Tokens      *handler.TokenHandler
}

// Server is the HTTP + WebSocket API server for the resolution engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wires the middleware
// chain (rate limiting, auth, logging, CORS).
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	admin := middleware.Admin(cfg.AdminAPIKey)

	// Health and status (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Health.GetStatus)

	// Market lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.OpenMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/close", handlers.Markets.CloseMarket)
	mux.HandleFunc("GET /api/markets/{id}/submissions", handlers.Markets.ListSubmissions)
	mux.HandleFunc("POST /api/markets/{id}/submissions", handlers.Markets.Submit)
	mux.HandleFunc("GET /api/submissions/{id}", handlers.Markets.GetSubmission)
	mux.HandleFunc("GET /api/submissions/{id}/bets", handlers.Markets.ListBets)
	mux.HandleFunc("POST /api/submissions/{id}/bets", handlers.Markets.PlaceBet)

	// Resolution and settlement archive. Resolve authenticates the oracle by
	// signature; Cancel is admin-only.
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Settlements.Resolve)
	mux.Handle("POST /api/markets/{id}/cancel", admin(http.HandlerFunc(handlers.Settlements.Cancel)))
	mux.HandleFunc("GET /api/settlements", handlers.Settlements.ListSettlements)
	mux.HandleFunc("GET /api/settlements/{id}", handlers.Settlements.GetSettlement)
	mux.HandleFunc("GET /api/distributions", handlers.Settlements.ListDistributions)

	// Treasury and payouts.
	mux.HandleFunc("GET /api/treasury/shares", handlers.Treasury.GetShares)
	mux.HandleFunc("GET /api/treasury/projected", handlers.Treasury.GetProjectedEarnings)
	mux.HandleFunc("GET /api/accounts/{address}/balance", handlers.Treasury.GetBalance)
	mux.HandleFunc("POST /api/accounts/{address}/withdraw", handlers.Treasury.Withdraw)
	mux.HandleFunc("GET /api/accounts/{address}/transfers", handlers.Treasury.ListTransfers)

	// Token registry. Mint and finalize are admin-only.
	mux.HandleFunc("GET /api/token/supply", handlers.Tokens.GetSupply)
	mux.HandleFunc("GET /api/token/holders", handlers.Tokens.ListHolders)
	mux.HandleFunc("GET /api/token/{id}/owner", handlers.Tokens.GetOwner)
	mux.HandleFunc("GET /api/accounts/{address}/tokens", handlers.Tokens.GetTokenBalance)
	mux.Handle("POST /api/token/mint", admin(http.HandlerFunc(handlers.Tokens.Mint)))
	mux.Handle("POST /api/token/finalize", admin(http.HandlerFunc(handlers.Tokens.Finalize)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
