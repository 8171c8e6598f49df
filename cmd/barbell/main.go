package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/barbell/pkg/api"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/catalog"
	"github.com/platinummonkey/barbell/pkg/config"
	"github.com/platinummonkey/barbell/pkg/hooks"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/orgs"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/platinummonkey/barbell/pkg/status"
	"github.com/platinummonkey/barbell/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	storage := flag.String("storage", "", "Storage backend, memory or postgres (overrides BARBELL_STORAGE_TYPE)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err == nil && *storage != "" {
		cfg.Database.StorageType = *storage
		err = cfg.Validate()
	}
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "barbell")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("barbell exited with error")
		os.Exit(1)
	}
}

// backend is everything that differs between memory and postgres storage
type backend struct {
	db        *sql.DB
	catalog   catalog.Store
	statuses  status.Store
	directory orgs.Directory
	users     auth.UserStore
	close     func()
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	be, err := openBackend(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer be.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		rc, err := postgres.NewRedisClient(postgres.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		redisClient = rc.GetClient()
	}

	resolver, err := newResolver(ctx, cfg, be.users, redisClient, metrics)
	if err != nil {
		return err
	}

	audit := auth.NewAuditLogger(be.db)
	guard := rbac.NewGuard(be.directory, audit, metrics)

	hookRegistry := hooks.NewRegistry(metrics)
	if err := registerHooks(hookRegistry, guard, be.directory, audit); err != nil {
		return err
	}
	hookRegistry.Seal()

	opts := api.Options{
		Catalog:      catalog.NewService(be.catalog, catalog.NewVisibilityBuilder(be.directory)),
		Statuses:     status.NewManager(be.statuses, metrics),
		Directory:    be.directory,
		Guard:        guard,
		Audit:        audit,
		RequiredAuth: middleware.NewAuthMiddleware(resolver, cfg.Auth.SessionCookieName, false),
		OptionalAuth: middleware.NewAuthMiddleware(resolver, cfg.Auth.SessionCookieName, true),
		Hooks:        hookRegistry,
		Metrics:      metrics,
		Logger:       logger,
	}
	if cfg.Auth.ProviderURL != "" {
		opts.Provider, err = api.NewProviderProxy(cfg.Auth.ProviderURL, cfg.Server.WriteTimeout)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("No authentication provider URL configured, /api/auth/ is not served")
	}
	if redisClient != nil && cfg.Auth.ProviderRateLimit > 0 {
		opts.RateLimiter = middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Auth.ProviderRateLimit,
			WindowDuration:    cfg.Auth.ProviderRateWindow,
		}, "barbell:ratelimit:auth")
	}
	server := api.NewServer(opts)

	if cfg.Status.MonitorEnabled {
		monitor := status.NewMonitor(be.statuses, metrics, logger)
		if err := monitor.Start(cfg.Status.MonitorSchedule); err != nil {
			return err
		}
		defer monitor.Stop()
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "barbell-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(be.db, redisClient).WithVersion(version).WithMetrics(metrics)
	observability.RegisterHealthRoutes(healthMux, checker)
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health and metrics server listening on %s", healthServer.Addr)
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*backend, error) {
	if cfg.Database.StorageType == config.StorageMemory {
		logger.Warn("Using in-memory storage, all data is lost on restart")
		dir := orgs.NewMemoryDirectory()
		statuses := status.NewMemoryStore()
		users := auth.NewMemoryUserStore()

		if path := cfg.Database.SeedFile; path != "" {
			seed, err := readSeed(path)
			if err != nil {
				return nil, err
			}
			if err := seed.apply(ctx, dir, statuses, users); err != nil {
				return nil, err
			}
			logger.WithFields(map[string]interface{}{
				"file":          path,
				"organizations": len(seed.Organizations),
				"users":         len(seed.Users),
			}).Info("Seeded in-memory storage")
		} else {
			logger.Warn("No seed file configured, memory storage starts without organizations")
		}

		return &backend{
			catalog:   catalog.NewMemoryStore(),
			statuses:  statuses,
			directory: dir,
			users:     users,
			close:     func() {},
		}, nil
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		URL:         cfg.Database.PostgresURL,
		MaxConns:    cfg.Database.MaxOpenConns,
		MinConns:    cfg.Database.MaxIdleConns,
		Timeout:     cfg.Database.ConnectTimeout,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	db := cm.Primary()
	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			cm.Close()
			return nil, err
		}
	}
	if metrics != nil {
		cm.StartStatsRoutine(ctx, metrics, 15*time.Second)
	}

	return &backend{
		db:        db,
		catalog:   catalog.NewPostgresStore(db),
		statuses:  status.NewPostgresStore(db),
		directory: orgs.NewPostgresDirectory(db),
		users:     auth.NewPostgresUserStore(db),
		close: func() {
			if err := cm.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close database")
			}
		},
	}, nil
}

// newResolver chains the session cookie store and, when configured, OIDC bearer tokens
func newResolver(ctx context.Context, cfg *config.Config, users auth.UserStore, client *redis.Client, metrics *observability.Metrics) (*auth.SessionResolver, error) {
	var providers []auth.SessionProvider
	if client != nil {
		providers = append(providers, auth.NewRedisSessionStore(client))
	}
	if cfg.Auth.OIDCIssuer != "" {
		oidcProvider, err := auth.NewOIDCProvider(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID, users,
			cfg.Auth.UserCacheSize, cfg.Auth.UserCacheTTL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, oidcProvider)
	}
	return auth.NewSessionResolver(metrics, providers...), nil
}

func registerHooks(reg *hooks.Registry, guard *rbac.Guard, members rbac.MembershipResolver, audit *auth.AuditLogger) error {
	if err := hooks.RegisterProviderRoutes(reg, guard); err != nil {
		return err
	}
	if err := reg.Register(hooks.PathSetActiveOrganization, hooks.PhaseBefore, hooks.ActiveOrganizationHook(members)); err != nil {
		return err
	}
	return reg.Register(hooks.PathSignInEmail, hooks.PhaseAfter, hooks.SignInAuditHook(audit))
}
