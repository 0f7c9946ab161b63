package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/admin"
	"github.com/clinic/clinic/internal/domain/directory"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/internal/platform/web"
)

// newLogger writes JSON to stdout, or a console format in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := cfg.Level(); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

// resolveSessionKey returns SESSION_SECRET decoded, or a random 32-byte key.
// The second return value is true when a random key was generated.
func resolveSessionKey(cfg *config.Config) ([]byte, bool, error) {
	key, err := cfg.SessionKey()
	if err != nil {
		return nil, false, err
	}
	if key != nil {
		return key, false, nil
	}
	key = make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random session key: %w", err)
	}
	return key, true, nil
}

// ipExtractor decides which address the rate limiters key on. Without
// trusted proxies only the socket address counts, so forwarding headers sent
// by clients are ignored. With trusted proxies X-Forwarded-For is walked back
// to the first hop outside those ranges.
func ipExtractor(cfg *config.Config) echo.IPExtractor {
	nets, err := cfg.TrustedProxyNets()
	if err != nil || len(nets) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range nets {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// deps is everything newServer wires together.
type deps struct {
	cfg        *config.Config
	logger     zerolog.Logger
	store      recordstore.Store
	telemetry  *telemetry.TelemetryProvider
	sessionKey []byte
	// dbHealth serves /health/db; nil without a database.
	dbHealth echo.HandlerFunc
}

func newServer(d deps) *echo.Echo {
	cfg := d.cfg
	store := recordstore.Instrument(d.store, recordstore.NewMetrics(d.telemetry.Registry()), d.telemetry.Tracer())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(cfg)
	e.HTTPErrorHandler = web.ErrorHandler(d.logger)

	sessions := auth.NewSessionManager(d.sessionKey, cfg.SessionTTL, cfg.SecureCookies())

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled || cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(d.telemetry.TracingMiddleware())
	e.Use(d.telemetry.MetricsMiddleware())
	e.Use(sessions.Middleware())

	dir := directory.New(store, d.logger)

	accountHandler := account.NewHandler(account.NewService(store, dir, d.logger), sessions, d.logger)
	accountHandler.RegisterRoutes(e, middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         cfg.LoginRateLimitBurst,
	}))

	appts := scheduling.NewAppointmentRepoStore(store)
	schedulingHandler := scheduling.NewHandler(scheduling.NewService(appts, store, dir, d.logger))
	schedulingHandler.RegisterRoutes(e)

	adminHandler := admin.NewHandler(admin.NewService(store, dir, d.logger))
	adminHandler.RegisterRoutes(e)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "store": cfg.StoreBackend})
	})
	if d.dbHealth != nil {
		e.GET("/health/db", d.dbHealth)
	}
	if cfg.MetricsEnabled {
		e.GET("/metrics", d.telemetry.PrometheusHandler())
	}

	return e
}

func runServer(seed adminSeed) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	sessionKey, randomKey, err := resolveSessionKey(cfg)
	if err != nil {
		return err
	}
	if randomKey {
		logger.Warn().Msg("sessions are signed with a random key")
	}

	tel := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "clinic-server",
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
		TracingEnabled: telemetry.BoolPtr(cfg.TracingEnabled),
		SampleRate:     cfg.TraceSampleRate,
	}, logger)

	d := deps{cfg: cfg, logger: logger, telemetry: tel, sessionKey: sessionKey}

	ctx := context.Background()
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if cfg.AutoMigrate {
			n, err := db.NewMigrator(pool, os.DirFS(cfg.MigrationsDir), logger).Up(ctx)
			if err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations up to date")
		}

		d.store = recordstore.NewPostgresStore(pool)
		d.dbHealth = db.HealthHandler(pool, db.PoolStatsOf(pool))
		tel.ObservePool(db.PoolStatsOf(pool))
	case config.BackendMemory:
		d.store = recordstore.NewMemoryStore()
	}

	if err := seedAdmin(ctx, d.store, logger, seed); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	e := newServer(d)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreBackend).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
