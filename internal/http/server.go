package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Deps are the services the handlers call.
type Deps struct {
	Directory    *services.Directory
	Members      *services.MembershipManager
	Ledger       *services.ExpenseLedger
	Aggregator   *services.Aggregator
	Transactions *services.TransactionService

	Auth   *auth.PasswordAuthenticator
	Tokens *auth.JWTManager

	// Activity is nil when no SQL backend is configured.
	Activity storage.ActivityRepository
	GraphQL  http.Handler

	// Ready reports whether dependencies can serve traffic. Nil means always ready.
	Ready func(context.Context) error
}

// Options tune the transport.
type Options struct {
	RateLimitPerMinute int
	EnableH2C          bool
	// Registry receives the HTTP metrics and is served on /metrics. When nil
	// a private registry with the Go and process collectors is created.
	Registry *prometheus.Registry
	Logger   *applog.Logger
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	registry *prometheus.Registry

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(nil, applog.ComponentHTTP)
	}

	s := &Server{
		deps:     deps,
		detector: security.NewDetector(reg),
		registry: reg,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Registerer:        reg,
		}),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, isOperational, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			"component", applog.ComponentRateLimit,
			"client_ip", s.detector.ExtractClientIP(r),
			"method", r.Method,
			"path", r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP, trace.NewMetrics(reg)).Middleware(handler)

	if opts.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// route labels the request with pattern for metrics before calling h.
func route(pattern string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), pattern)
		h(w, r)
	})
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /healthz", handleHealth},
		{"GET /readyz", s.handleReady},

		{"GET /api/participants", s.handleListParticipants},
		{"POST /api/participants", s.handleCreateParticipant},
		{"GET /api/participants/{id}", s.handleGetParticipant},
		{"PATCH /api/participants/{id}", s.handleUpdateParticipant},
		{"DELETE /api/participants/{id}", s.handleDeleteParticipant},

		{"GET /api/groups", s.handleListGroups},
		{"POST /api/groups", s.handleCreateGroup},
		{"GET /api/groups/{id}", s.handleGetGroup},
		{"PATCH /api/groups/{id}", s.handleUpdateGroup},
		{"DELETE /api/groups/{id}", s.handleDeleteGroup},
		{"GET /api/groups/{id}/members", s.handleListMembers},
		{"POST /api/groups/{id}/members", s.handleAddMember},
		{"GET /api/groups/{id}/expenses", s.handleGroupExpenses},
		{"GET /api/groups/{id}/balances", s.handleGroupBalances},
		{"PATCH /api/members/{id}", s.handleUpdateMember},
		{"DELETE /api/members/{id}", s.handleRemoveMember},

		{"GET /api/expenses", s.handleListExpenses},
		{"POST /api/expenses", s.handleCreateExpense},
		{"GET /api/expenses/{id}", s.handleGetExpense},
		{"PATCH /api/expenses/{id}", s.handleUpdateExpense},
		{"DELETE /api/expenses/{id}", s.handleDeleteExpense},
		{"POST /api/expenses/{id}/settle", s.handleSettleSplit},
		{"PATCH /api/splits/{id}", s.handleUpdateSplit},

		{"GET /api/transactions", s.handleListTransactions},
		{"POST /api/transactions", s.handleCreateTransaction},
		{"GET /api/transactions/export", s.handleExportTransactions},
		{"POST /api/transactions/import", s.handleImportTransactions},
		{"GET /api/transactions/{id}", s.handleGetTransaction},
		{"PUT /api/transactions/{id}", s.handleUpdateTransaction},
		{"DELETE /api/transactions/{id}", s.handleDeleteTransaction},

		{"GET /api/reports/summary", s.handleReportSummary},
		{"GET /api/analytics/trends", s.handleTrends},
		{"GET /api/activity", s.handleActivity},

		{"POST /api/auth/register", s.handleRegister},
		{"POST /api/auth/login", s.handleLogin},
		{"GET /api/auth/me", s.handleMe},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, route(rt.pattern, rt.handler))
	}

	mux.Handle("GET /metrics", route("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP))
	if s.deps.GraphQL != nil {
		mux.Handle("/graphql", route("/graphql", s.deps.GraphQL.ServeHTTP))
	}
}

// isOperational reports whether r targets an endpoint that bypasses rate limiting.
func isOperational(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// Shutdown gracefully shuts down the server and the limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
