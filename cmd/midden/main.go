package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/middenhq/midden/pkg/api"
	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/config"
	"github.com/middenhq/midden/pkg/httputil"
	"github.com/middenhq/midden/pkg/mail"
	"github.com/middenhq/midden/pkg/middleware"
	"github.com/middenhq/midden/pkg/observability"
	"github.com/middenhq/midden/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting midden authentication service")

	ctx := context.Background()

	// Database
	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
		Timeout:  cfg.Database.Timeout,
		Retries:  cfg.Database.ConnectRetries,
		Backoff:  cfg.Database.ConnectBackoff,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}
	logger.Info("Database ready")

	// Metrics
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Storage repositories
	users := postgres.NewUserRepository(db)
	codes := postgres.NewCodeRepository(db)

	// Verification code delivery
	var mailer mail.Mailer
	if cfg.Mail.SkipDelivery {
		mailer = mail.NewLogMailer(logger)
	} else {
		mailer = mail.NewSMTPMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SenderAddress, cfg.Mail.SenderPassword)
	}
	if metrics != nil && !cfg.Mail.SkipDelivery {
		mailer = &instrumentedMailer{next: mailer, metrics: metrics}
	}

	// Core authentication service
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hasher := auth.NewPasswordHasher(auth.DefaultBcryptCost)
	service := auth.NewService(auth.ServiceOptions{
		Users:        users,
		Codes:        codes,
		Mailer:       mailer,
		Issuer:       issuer,
		Hasher:       hasher,
		Logger:       logger,
		CodeTTL:      cfg.Auth.CodeTTL,
		SkipDelivery: cfg.Mail.SkipDelivery,
	})

	// Expired code sweeper
	sweeper, err := auth.NewSweeper(cfg.Auth.CleanupSchedule, codes, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create code sweeper")
		os.Exit(1)
	}
	sweeper.Start()

	// HTTP surface
	server := api.NewServer(api.ServerOptions{
		Auth:          api.NewAuthHandlers(service, users, hasher, logger, metrics),
		Users:         api.NewUserHandlers(users, logger),
		Authenticator: middleware.NewAuthenticator(issuer, logger, metrics),
		Gate:          middleware.NewPermissionGate(logger, metrics),
	})

	var handler http.Handler = server
	if metrics != nil {
		handler = metrics.HTTPMiddleware(handler)
	}
	handler = httputil.CORSMiddleware(cfg.Server.CORSAllowedOrigins)(handler)
	handler = httputil.RecoveryMiddleware(logger)(handler)
	handler = httputil.LoggingMiddleware(logger)(handler)
	handler = httputil.RequestIDMiddleware(handler)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "midden")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener for probes and scrapes.
	healthChecker := observability.NewHealthChecker(db)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(sweeper.Stop)
	if providers != nil {
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}

	if metrics != nil {
		go samplePoolStats(ctx, db, metrics)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

// instrumentedMailer counts delivery outcomes without touching the mail
// implementations themselves.
type instrumentedMailer struct {
	next    mail.Mailer
	metrics *observability.Metrics
}

func (m *instrumentedMailer) Send(ctx context.Context, to, code string) error {
	err := m.next.Send(ctx, to, code)
	if err != nil {
		m.metrics.CodeDeliveriesTotal.WithLabelValues("failed").Inc()
		return err
	}
	m.metrics.CodeDeliveriesTotal.WithLabelValues("sent").Inc()
	return nil
}

// samplePoolStats mirrors connection pool gauges into the metrics registry.
func samplePoolStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
