package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/neo-dashboard/internal/config"
	httpcontroller "github.com/vadim/neo-dashboard/internal/controller/http"
	"github.com/vadim/neo-dashboard/internal/database"
	analyticsdao "github.com/vadim/neo-dashboard/internal/domain/analytics/dao"
	analyticspolicy "github.com/vadim/neo-dashboard/internal/domain/analytics/policy"
	"github.com/vadim/neo-dashboard/internal/domain/analytics/scheduler"
	analyticsservice "github.com/vadim/neo-dashboard/internal/domain/analytics/service"
	calendarentity "github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
	calendarpolicy "github.com/vadim/neo-dashboard/internal/domain/calendar/policy"
	calendarservice "github.com/vadim/neo-dashboard/internal/domain/calendar/service"
	"github.com/vadim/neo-dashboard/internal/httpx/response"
	"github.com/vadim/neo-dashboard/internal/httpx/upstream/dashboard"
	"github.com/vadim/neo-dashboard/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	// Infrastructure
	pool       *pgxpool.Pool
	stateStore analyticspolicy.StateStore
	archiver   analyticspolicy.SnapshotArchiver

	// Domain policies (interfaces for HTTP handlers)
	calendarPolicy *calendarpolicy.Policy
	sessions       *analyticsservice.Sessions

	// Janitor evicting abandoned analytics pages
	janitor *scheduler.Scheduler
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	if err := app.initDomains(ctx); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	if err := app.registerRoutes(); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("registering routes: %w", err)
	}

	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Sessions.JanitorEnabled {
		app.janitor = scheduler.New(app.sessions, cfg.Sessions.JanitorInterval, cfg.Sessions.IdleTTL, logger)
	}

	return app, nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.router
}

// initInfrastructure initializes the state store and the snapshot archive
func (a *App) initInfrastructure(ctx context.Context) error {
	if dsn := a.cfg.Database.PostgresDSN; dsn != "" {
		pool, err := database.NewPostgresPool(ctx, dsn, a.cfg.Database.MaxConns, a.cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.pool = pool

		store := analyticsdao.NewStatePostgres(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrating state store: %w", err)
		}
		a.stateStore = store
		a.logger.Info("analytics state store", "backend", "postgres")
	} else {
		a.stateStore = analyticsdao.NewStateMemory()
		a.logger.Info("analytics state store", "backend", "memory")
	}

	if a.cfg.S3.Enabled {
		a.archiver = storage.NewSnapshotArchive(storage.S3Config{
			Endpoint:        a.cfg.S3.Endpoint,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			Bucket:          a.cfg.S3.Bucket,
			Region:          a.cfg.S3.Region,
			Prefix:          a.cfg.S3.Prefix,
		})
		a.logger.Info("analytics snapshot archive enabled", "bucket", a.cfg.S3.Bucket)
	}

	return nil
}

// initDomains initializes domain layers (Service, Policy)
func (a *App) initDomains(ctx context.Context) error {
	client := dashboard.New(
		dashboard.WithBaseURL(a.cfg.Upstream.BaseURL),
		dashboard.WithTimeout(a.cfg.Upstream.Timeout),
	)

	firstDay, err := a.cfg.Calendar.Weekday()
	if err != nil {
		return err
	}
	loc, err := a.cfg.Calendar.Location()
	if err != nil {
		return err
	}

	builder := calendarservice.NewBuilder(
		calendarservice.WithFirstDayOfWeek(firstDay),
		calendarservice.WithLocation(loc),
	)
	memo := calendarservice.NewMemo(builder, a.cfg.Calendar.MemoSize)
	a.calendarPolicy = calendarpolicy.New(memo, &postSearchAdapter{client: client}, a.logger)

	a.sessions = analyticsservice.New(client, analyticsservice.Config{
		Store:    a.stateStore,
		Archiver: a.archiver,
		Logger:   a.logger,
	})

	return nil
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() error {
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	docs, err := httpcontroller.NewDocsHandler("Neo-Dashboard API", OpenAPISpec)
	if err != nil {
		return fmt.Errorf("loading openapi document: %w", err)
	}
	docs.RegisterRoutes(a.router)

	a.router.Route("/api/v1", func(r chi.Router) {
		r.Use(httpcontroller.RequireBearer)

		httpcontroller.NewCalendarHandler(a.calendarPolicy).RegisterRoutes(r)
		httpcontroller.NewAnalyticsHandler(a.sessions).RegisterRoutes(r)
	})

	return nil
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// readyHandler reports ready once the state store answers
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if a.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := a.pool.Ping(ctx); err != nil {
			a.logger.Warn("readiness check failed", "error", err)
			response.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}

	response.OK(w, map[string]string{"status": "ready"})
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	if a.janitor != nil {
		a.janitor.Start(ctx)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.janitor != nil {
		a.janitor.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	a.closeInfrastructure()

	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// postSearchAdapter adapts dashboard.Client to calendarpolicy.PostSource
type postSearchAdapter struct {
	client *dashboard.Client
}

func (a *postSearchAdapter) SearchPosts(ctx context.Context, token string, in calendarpolicy.SearchInput) ([]calendarentity.Post, error) {
	return a.client.SearchPosts(ctx, token, dashboard.SearchPostsInput{
		Query:      in.Query,
		Status:     in.Status,
		From:       in.From,
		To:         in.To,
		AccountIDs: in.AccountIDs,
	})
}
