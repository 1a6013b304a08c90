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

	"github.com/bissquit/orgstatus/api/openapi"
	"github.com/bissquit/orgstatus/internal/catalog"
	catalogpostgres "github.com/bissquit/orgstatus/internal/catalog/postgres"
	"github.com/bissquit/orgstatus/internal/config"
	"github.com/bissquit/orgstatus/internal/identity"
	"github.com/bissquit/orgstatus/internal/identity/jwt"
	identitypostgres "github.com/bissquit/orgstatus/internal/identity/postgres"
	"github.com/bissquit/orgstatus/internal/incidents"
	incidentspostgres "github.com/bissquit/orgstatus/internal/incidents/postgres"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/organizations"
	organizationspostgres "github.com/bissquit/orgstatus/internal/organizations/postgres"
	"github.com/bissquit/orgstatus/internal/pkg/ctxlog"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/bissquit/orgstatus/internal/pkg/metrics"
	"github.com/bissquit/orgstatus/internal/pkg/postgres"
	"github.com/bissquit/orgstatus/internal/publicstatus"
	"github.com/bissquit/orgstatus/internal/realtime"
	"github.com/bissquit/orgstatus/internal/status"
	"github.com/bissquit/orgstatus/internal/version"
	"github.com/bissquit/orgstatus/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	hub           *realtime.Hub
	webhooks      *realtime.WebhookSink
	dbCollector   *metrics.DBPoolCollector
	server        *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(migrations.FS, cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		dbCollector: metrics.NewDBPoolCollector(db),
		cancel:      cancel,
	}

	if err := prometheus.Register(app.dbCollector); err != nil {
		logger.Warn("database pool metrics not registered", "error", err)
	}

	var sinks []realtime.Sink
	if len(cfg.Realtime.WebhookURLs) > 0 {
		app.webhooks = realtime.NewWebhookSink(realtime.WebhookConfig{
			URLs:        cfg.Realtime.WebhookURLs,
			Timeout:     cfg.Realtime.WebhookTimeout,
			QueueSize:   cfg.Realtime.WebhookQueueSize,
			MaxAttempts: cfg.Realtime.WebhookMaxAttempts,
			Backoff:     cfg.Realtime.WebhookBackoff,
		})
		app.webhooks.Start(ctx)
		sinks = append(sinks, app.webhooks)
	}
	logger.Info("realtime configured",
		"buffer_size", cfg.Realtime.BufferSize,
		"webhook_urls", len(cfg.Realtime.WebhookURLs),
	)
	app.hub = realtime.NewHub(cfg.Realtime.BufferSize, sinks...)

	router, err := app.setupRouter()
	if err != nil {
		app.closeBackground()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers and blocks until the main server stops.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, disconnects realtime subscribers,
// delivers queued webhook events and closes the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.closeBackground()

	return errors.Join(errs...)
}

func (a *App) closeBackground() {
	a.hub.Close()
	if a.webhooks != nil {
		a.webhooks.Stop()
	}
	a.cancel()
	prometheus.Unregister(a.dbCollector)
	a.db.Close()
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Hub returns the realtime hub.
func (a *App) Hub() *realtime.Hub {
	return a.hub
}

func (a *App) setupRouter() (*chi.Mux, error) {
	policy, err := incidents.TransitionPolicyByName(a.config.Incidents.Transitions)
	if err != nil {
		return nil, err
	}

	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}

	identityService := identity.NewService(identitypostgres.NewRepository(a.db), jwtAuth)

	organizationsRepo := organizationspostgres.NewRepository(a.db)
	authority := membership.NewAuthority(organizationsRepo)
	organizationsService := organizations.NewService(organizationsRepo, authority)

	catalogRepo := catalogpostgres.NewRepository(a.db)
	engine := status.NewEngine(catalogRepo, a.hub)
	catalogService := catalog.NewService(catalogRepo, authority, engine, a.hub)

	incidentsService := incidents.NewService(
		incidentspostgres.NewRepository(a.db),
		authority,
		engine,
		a.hub,
		incidents.WithTransitionPolicy(policy),
	)

	projector := publicstatus.NewProjector(organizationsService, catalogService, incidentsService)

	identityHandler := identity.NewHandler(identityService)
	organizationsHandler := organizations.NewHandler(organizationsService)
	catalogHandler := catalog.NewHandler(catalogService)
	incidentsHandler := incidents.NewHandler(incidentsService)
	publicHandler := publicstatus.NewHandler(projector)
	realtimeHandler := realtime.NewHandler(a.hub, realtime.HandlerConfig{
		PingInterval:   a.config.Realtime.PingInterval,
		WriteTimeout:   a.config.Realtime.WriteTimeout,
		AllowedOrigins: a.config.CORS.AllowedOrigins,
	})

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(docsPage))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived connection, must stay outside the request timeout.
		r.Get("/realtime", realtimeHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(a.config.Server.RequestTimeout))

			r.Group(func(r chi.Router) {
				if a.config.RateLimit.Enabled {
					r.Use(httputil.RateLimitMiddleware(
						rate.Limit(a.config.RateLimit.RequestsPerSecond),
						a.config.RateLimit.Burst,
					))
				}
				identityHandler.RegisterRoutes(r)
			})

			organizationsHandler.RegisterPublicRoutes(r)
			catalogHandler.RegisterPublicRoutes(r)
			incidentsHandler.RegisterPublicRoutes(r)
			publicHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.AuthMiddleware(identityService))

				identityHandler.RegisterProtectedRoutes(r)
				organizationsHandler.RegisterRoutes(r)
				catalogHandler.RegisterRoutes(r)
				incidentsHandler.RegisterRoutes(r)
			})
		})
	})

	return r, nil
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
    <title>OrgStatus API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
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
