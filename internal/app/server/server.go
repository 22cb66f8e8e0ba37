package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Migiro-Johans/HRS/internal/domain/audit"
	"github.com/Migiro-Johans/HRS/internal/domain/employees"
	"github.com/Migiro-Johans/HRS/internal/domain/payroll"
	"github.com/Migiro-Johans/HRS/internal/platform/config"
	"github.com/Migiro-Johans/HRS/internal/platform/db"
	"github.com/Migiro-Johans/HRS/internal/platform/jobs"
	"github.com/Migiro-Johans/HRS/internal/platform/metrics"
	"github.com/Migiro-Johans/HRS/internal/transport/http/api"
	audithandler "github.com/Migiro-Johans/HRS/internal/transport/http/handlers/audit"
	employeeshandler "github.com/Migiro-Johans/HRS/internal/transport/http/handlers/employees"
	payrollhandler "github.com/Migiro-Johans/HRS/internal/transport/http/handlers/payroll"
	"github.com/Migiro-Johans/HRS/internal/transport/http/middleware"
)

// App wires the database, domain services, and HTTP router together. Tests
// construct one directly; Run builds one from the environment.
type App struct {
	Router *chi.Mux
	Pool   *pgxpool.Pool

	cancelJobs context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	employeesStore := employees.NewStore(pool)
	payrollStore := payroll.NewStore(pool)
	auditService := audit.New(pool)
	processor := payroll.NewProcessor(employeesStore, employeesStore, payrollStore, payrollStore, auditService, cfg.PayrollWorkers)
	payslips := payroll.NewPayslipService(payrollStore, cfg.PayslipDir)

	collector := metrics.New()

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	jobService := jobs.New(pool, collector)
	jobService.Start(jobsCtx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Actor)
	router.Use(middleware.Logger)
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.PayrollMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Get("/metricsz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
	})

	router.Route("/api/v1", func(r chi.Router) {
		payrollHandler := payrollhandler.NewHandler(payrollStore, processor, payslips, jobService)
		payrollHandler.RegisterRoutes(r)

		employeesHandler := employeeshandler.NewHandler(employeesStore)
		employeesHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditService)
		auditHandler.RegisterRoutes(r)
	})

	return &App{
		Router:     router,
		Pool:       pool,
		cancelJobs: cancelJobs,
	}, nil
}

func (a *App) Close() {
	a.cancelJobs()
	a.Pool.Close()
}

func Run() {
	cfg := config.Load()

	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	log.Printf("HRS server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
