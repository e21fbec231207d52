package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dailybudget/internal/auth"
	"dailybudget/internal/cache"
	"dailybudget/internal/log"
	"dailybudget/internal/middleware/ratelimit"
	"dailybudget/internal/middleware/security"
	"dailybudget/internal/middleware/trace"
	"dailybudget/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services are the operations the API exposes.
type Services struct {
	Budgets   *services.BudgetService
	Ledger    *services.LedgerService
	Recurring *services.RecurringService
	Limits    *services.LimitService
	Alerts    *services.AlertService
	Rates     *services.RatesService
	Export    *services.ExportService
}

type Options struct {
	Addr      string
	Tokens    *auth.Tokens
	RateLimit ratelimit.Config
	Logger    *log.Logger
	// Location resolves yyyy-MM-dd parameters and the default today.
	Location *time.Location
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready func(context.Context) error
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc     Services
	loc     *time.Location
	now     func() time.Time
	ready   func(context.Context) error
	limiter *ratelimit.Limiter
	janitor *cache.Janitor

	stopJanitor  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		svc:     svc,
		loc:     opts.Location,
		now:     opts.Now,
		ready:   opts.Ready,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		janitor: cache.NewJanitor(),
	}
	s.janitor.Register("ratelimit", s.limiter.Buckets())
	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	s.janitor.Start(ctx, 5*time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	ips := security.NewClientIPResolver()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.Middleware)
	r.Use(log.Middleware(opts.Logger))
	r.Use(log.RequestIDMiddleware(trace.FromRequest))
	r.Use(log.AccessLog(ips.ClientIP))
	r.Use(headers.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, _ *http.Request) {
			TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
		}))
		if opts.Tokens != nil {
			r.Use(opts.Tokens.Middleware(func(w http.ResponseWriter, _ *http.Request, _ error) {
				UnauthorizedError("Invalid or expired token").Write(w)
			}))
		}

		r.Get("/categories", s.handleCategories)

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Post("/", s.handleCreateBudget)
			r.Route("/{budgetID}", func(r chi.Router) {
				r.Get("/", s.handleGetBudget)
				r.Patch("/", s.handleUpdateBudget)
				r.Delete("/", s.handleRemoveBudget)
				r.Post("/duplicate", s.handleDuplicateBudget)
				r.Post("/main-currency", s.handleSwitchMainCurrency)

				r.Get("/currencies", s.handleListCurrencies)
				r.Post("/currencies", s.handleAddCurrency)
				r.Put("/currencies/{code}", s.handleUpdateRate)
				r.Delete("/currencies/{code}", s.handleRemoveCurrency)
				r.Post("/rates/refresh", s.handleRefreshRates)

				r.Get("/assets", s.handleListAssets)
				r.Get("/assets/total", s.handleAssetsTotal)
				r.Put("/assets/{code}", s.handleSetAsset)
				r.Post("/assets/{code}/add", s.handleAdjustAsset(false))
				r.Post("/assets/{code}/subtract", s.handleAdjustAsset(true))

				r.Get("/expenses", s.handleListExpenses)
				r.Get("/income", s.handleListIncome)
				r.Get("/transfers", s.handleListTransfers)
				r.Get("/recurring", s.handleListRecurring)

				r.Get("/daily-limit", s.handleDailyLimit)
				r.Get("/breakdown", s.handleBreakdown)
				r.Get("/export", s.handleExport)
			})
		})

		r.Post("/expenses", s.handleRecordExpense)
		r.Get("/expenses/{id}", s.handleGetExpense)
		r.Patch("/expenses/{id}", s.handleUpdateExpense)
		r.Delete("/expenses/{id}", s.handleRemoveExpense)

		r.Post("/income", s.handleRecordIncome)
		r.Get("/income/{id}", s.handleGetIncome)
		r.Patch("/income/{id}", s.handleUpdateIncome)
		r.Delete("/income/{id}", s.handleRemoveIncome)

		r.Post("/transfers", s.handleTransfer)

		r.Post("/recurring", s.handleAddRecurring)
		r.Patch("/recurring/{id}", s.handleUpdateRecurring)
		r.Delete("/recurring/{id}", s.handleRemoveRecurring)

		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts/generate", s.handleGenerateAlerts)
		r.Post("/alerts/read-all", s.handleMarkAllAlertsRead)
		r.Post("/alerts/{id}/read", s.handleMarkAlertRead)
		r.Delete("/alerts/{id}", s.handleRemoveAlert)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})
	return r
}

// Shutdown gracefully shuts down the server and its cleanup routine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopJanitor()
		s.janitor.Wait()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// RateLimitMetrics exposes the limiter counters.
func (s *Server) RateLimitMetrics() ratelimit.Metrics {
	return s.limiter.GetMetrics()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
