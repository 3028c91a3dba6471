// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantops/breakdown-board/internal/catalog"
	"github.com/plantops/breakdown-board/internal/config"
	"github.com/plantops/breakdown-board/internal/identity"
	"github.com/plantops/breakdown-board/internal/incidents"
	"github.com/plantops/breakdown-board/internal/notify"
	"github.com/plantops/breakdown-board/internal/pkg/ctxlog"
	"github.com/plantops/breakdown-board/internal/pkg/httputil"
	"github.com/plantops/breakdown-board/internal/pkg/postgres"
	"github.com/plantops/breakdown-board/internal/store"
	"github.com/plantops/breakdown-board/internal/store/file"
	storepostgres "github.com/plantops/breakdown-board/internal/store/postgres"
	"github.com/plantops/breakdown-board/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool // nil with the file backend
	repo          *store.Repo
	broker        *notify.Broker
	server        *http.Server
	metricsServer *http.Server
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
		broker: notify.NewBroker(),
	}

	backend, err := app.initBackend()
	if err != nil {
		return nil, err
	}
	app.repo = store.NewRepo(backend)

	router := app.setupRouter()

	app.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout stays at the configured value; zero keeps SSE
		// streams open indefinitely.
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.Metrics.Enabled {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler())

		app.metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           metricsRouter,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	return app, nil
}

func (a *App) initBackend() (store.Backend, error) {
	if a.config.Store.DatabaseURL == "" {
		a.logger.Info("using file store", "path", a.config.Store.FilePath)
		return file.New(a.config.Store.FilePath), nil
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             a.config.Store.DatabaseURL,
		MaxConns:        4,
		ConnectAttempts: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := storepostgres.Migrate(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a.db = pool
	a.logger.Info("using postgres store")
	return storepostgres.New(pool), nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	if a.metricsServer != nil {
		go func() {
			a.logger.Info("starting metrics server", "addr", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	a.logger.Info("starting server", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(1)
	go shutdown("server", a.server)
	if a.metricsServer != nil {
		wg.Add(1)
		go shutdown("metrics server", a.metricsServer)
	}
	wg.Wait()

	if a.db != nil {
		a.db.Close()
	}

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Repo returns the document repository for testing.
func (a *App) Repo() *store.Repo {
	return a.repo
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.Server.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	identityService := identity.NewService(a.repo, a.config.Auth.AdminPIN, a.config.Auth.SessionTTL)
	identityHandler := identity.NewHandler(identityService)

	catalogService := catalog.NewService(a.repo, identityService, identityService)
	catalogHandler := catalog.NewHandler(catalogService)

	incidentService := incidents.NewService(a.repo, a.broker)
	incidentHandler := incidents.NewHandler(incidentService)

	r.Route("/api", func(r chi.Router) {
		// The event stream stays outside the timeout group; SSE
		// connections are long-lived on purpose.
		r.Get("/events", notify.SSEHandler(a.broker))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			identityHandler.RegisterPublicRoutes(r)
			catalogHandler.RegisterPublicRoutes(r)
			incidentHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.TechAuth(identityService))
				identityHandler.RegisterTechRoutes(r)
				incidentHandler.RegisterTechRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.AnyAuth(identityService, identityService))
				incidentHandler.RegisterHistoryRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.AdminAuth(identityService))
				catalogHandler.RegisterAdminRoutes(r)
				incidentHandler.RegisterAdminRoutes(r)
				r.Get("/admin/backup", a.backupHandler)
			})
		})
	})

	return r
}

// backupHandler streams the persisted document verbatim as a download.
func (a *App) backupHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := a.repo.Raw(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("backup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "backup failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=breakdown-board-%s.json", time.Now().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	} else if err := a.repo.View(ctx, func(*store.Document) error { return nil }); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
