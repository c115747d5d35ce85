// Package http exposes the JSON API. Every /api route is authenticated
// by the X-User-ID header; responses use a uniform success/error
// envelope.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"smartspend/internal/ai"
	"smartspend/internal/cache"
	"smartspend/internal/core"
	"smartspend/internal/middleware/ratelimit"
	"smartspend/internal/middleware/security"
	"smartspend/internal/middleware/trace"
	"smartspend/internal/services"
	"smartspend/internal/storage"
)

// ReceiptScanner extracts structured fields from a receipt image.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, image []byte, mimeType string) (*ai.ReceiptData, error)
}

type Server struct {
	http.Server

	storage *storage.SQLiteRepository
	ledger  *services.LedgerService
	budgets *services.BudgetMonitor
	scanner ReceiptScanner

	limiter *ratelimit.Limiter

	// Dashboard overviews are cached per user and account; entries are
	// purged on local mutations and on invalidation events from other
	// processes.
	overviewCache *cache.LRUCache[*services.AccountOverview]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// Options carries the wiring for NewServer. Scanner may be nil, which
// disables the receipt endpoint with a 503.
type Options struct {
	Addr               string
	Storage            *storage.SQLiteRepository
	Ledger             *services.LedgerService
	Budgets            *services.BudgetMonitor
	Scanner            ReceiptScanner
	RateLimitPerMinute int
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		storage: opts.Storage,
		ledger:  opts.Ledger,
		budgets: opts.Budgets,
		scanner: opts.Scanner,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		overviewCache: cache.NewLRUCache[*services.AccountOverview](200, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}
	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(trace.ClientIP)

	protected := func(h http.HandlerFunc) http.Handler {
		return tracer.Middleware(headers.Middleware(s.withRateLimit(s.withUser(h))))
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/accounts", protected(s.handleCreateAccount))
	mux.Handle("GET /api/accounts", protected(s.handleListAccounts))
	mux.Handle("GET /api/accounts/{id}", protected(s.handleAccountOverview))
	mux.Handle("PUT /api/accounts/{id}/default", protected(s.handleSetDefaultAccount))

	mux.Handle("POST /api/transactions", protected(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/{id}", protected(s.handleGetTransaction))
	mux.Handle("PUT /api/transactions/{id}", protected(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions", protected(s.handleDeleteTransactions))

	mux.Handle("GET /api/budget", protected(s.handleGetBudget))
	mux.Handle("PUT /api/budget", protected(s.handleSetBudget))

	mux.Handle("POST /api/receipts/scan", protected(s.handleScanReceipt))

	return s
}

// Shutdown stops the HTTP server together with the cache and rate
// limiter maintenance goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Invalidate purges cached dashboard views for the given accounts. It is
// called after local mutations and from the AMQP invalidation consumer.
func (s *Server) Invalidate(userID string, accountIDs []string) {
	for _, accountID := range accountIDs {
		s.overviewCache.Delete(overviewKey(userID, accountID))
	}
}

func overviewKey(userID, accountID string) string {
	return userID + ":" + accountID
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := trace.ClientIP(r)
		if !s.limiter.Allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, fmt.Errorf("%w: try again later", core.ErrRateLimited))
			return
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
