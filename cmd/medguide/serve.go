package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/api/handlers"
	"github.com/drfirst/medguide/internal/api/middleware"
	"github.com/drfirst/medguide/internal/audit"
	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/config"
	"github.com/drfirst/medguide/internal/infrastructure/postgres"
	"github.com/drfirst/medguide/internal/infrastructure/redpanda"
	"github.com/drfirst/medguide/internal/medical"
	"github.com/drfirst/medguide/internal/observability/metrics"
	"github.com/drfirst/medguide/internal/observability/tracing"
	"github.com/drfirst/medguide/internal/session"
	"github.com/drfirst/medguide/pkg/circuitbreaker"
	"github.com/drfirst/medguide/pkg/idempotency"
	"github.com/drfirst/medguide/pkg/workerpool"
)

type loadFunc func() (*config.Config, error)

func serveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the conversation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

// auditSink is the publisher for the configured sink plus a readiness probe
type auditSink struct {
	publisher audit.Publisher
	ready     func(ctx context.Context) error
	close     func()
}

func newAuditSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*auditSink, error) {
	switch cfg.AuditSink {
	case config.AuditSinkKafka:
		admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		defer admin.Close()
		if err := admin.EnsureTopics(ctx, cfg.AuditTopic); err != nil {
			return nil, fmt.Errorf("ensure audit topics: %w", err)
		}

		producerCfg := redpanda.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producer, err := redpanda.NewProducer(producerCfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("audit events go to Redpanda",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.AuditTopic))
		return &auditSink{
			publisher: redpanda.NewEventPublisher(producer, cfg.AuditTopic),
			ready: func(ctx context.Context) error {
				return redpanda.HealthCheck(ctx, cfg.KafkaBrokers)
			},
			close: func() {},
		}, nil

	case config.AuditSinkPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("audit events go to the Postgres outbox", zap.String("topic", cfg.AuditTopic))
		return &auditSink{
			publisher: postgres.NewOutboxWriter(pool, cfg.AuditTopic),
			ready:     pool.Ping,
			close:     pool.Close,
		}, nil

	default:
		return &auditSink{
			publisher: audit.NewLogPublisher(logger),
			ready:     func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}
}

func runServer(cfg *config.Config) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.ServiceVersion = version
	tracingCfg.Environment = cfg.Env
	tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	tp, err := tracing.Init(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	m := metrics.New()
	breakers := circuitbreaker.NewManager(logger)

	client, err := medical.NewClient(medical.Config{
		BaseURL:              cfg.MedicalAPIBase,
		Timeout:              cfg.BackendTimeout,
		RequestID:            middleware.GetRequestID,
		Observer:             m,
		OnBreakerStateChange: m.BreakerStateChanged,
	}, breakers, logger.Named("medical"))
	if err != nil {
		return err
	}
	asker := medical.NewRecoveringAsker(client, m, logger.Named("medical"))

	sink, err := newAuditSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.close()

	dispatcher, err := audit.NewDispatcher(sink.publisher, audit.DispatcherConfig{
		Pool:      workerpool.DefaultConfig(),
		RequestID: middleware.GetRequestID,
		Observer:  m,
	}, logger)
	if err != nil {
		return err
	}
	dispatcher.Start()
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			logger.Warn("audit dispatcher stop", zap.Error(err))
		}
	}()

	patient := catalog.Patient()
	sessions, err := session.NewManager(session.Deps{
		Asker:    asker,
		Modifier: client,
		Patient:  patient,
		Recorder: dispatcher,
		Observer: m,
	}, session.ManagerConfig{IdleTTL: cfg.SessionIdleTTL}, logger.Named("sessions"))
	if err != nil {
		return err
	}
	sessions.Start()
	defer sessions.Stop()

	idem := idempotency.NewStore(idempotency.DefaultConfig(), logger.Named("idempotency"))
	idem.Start()
	defer idem.Stop()

	conversationHandler := handlers.NewConversationHandler(sessions, patient, logger).
		WithIdempotency(idem)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(serviceName))

	// Health, readiness and metrics (no auth)
	r.Get("/health", healthHandler(breakers, dispatcher, sessions))
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !dispatcher.Healthy() {
			http.Error(w, "audit dispatcher not running", http.StatusServiceUnavailable)
			return
		}
		if err := sink.ready(r.Context()); err != nil {
			http.Error(w, "audit sink not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeyClients()))
		r.Mount("/", conversationHandler.Routes())
	})

	// Backend calls may take BACKEND_TIMEOUT, so writes get headroom past it
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting medguide API",
			zap.String("port", cfg.Port),
			zap.String("backend", cfg.MedicalAPIBase),
			zap.String("audit_sink", cfg.AuditSink),
			zap.Bool("tracing", tp.Enabled()))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigChan:
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}

type healthResponse struct {
	Status   string                        `json:"status"`
	Service  string                        `json:"service"`
	Version  string                        `json:"version"`
	Sessions int                           `json:"sessions"`
	Breakers []circuitbreaker.HealthStatus `json:"breakers"`
	Audit    workerpool.Stats              `json:"audit"`
}

func healthHandler(breakers *circuitbreaker.Manager, dispatcher *audit.Dispatcher, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "healthy",
			Service:  serviceName,
			Version:  version,
			Sessions: sessions.Len(),
			Breakers: breakers.GetHealthStatus(),
			Audit:    dispatcher.Stats(),
		}
		for _, b := range resp.Breakers {
			if !b.Healthy {
				resp.Status = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
