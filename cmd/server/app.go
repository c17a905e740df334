package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"othello/internal/audit"
	audithandler "othello/internal/audit/handler"
	"othello/internal/consent/cache"
	consenthandler "othello/internal/consent/handler"
	consentmetrics "othello/internal/consent/metrics"
	consentservice "othello/internal/consent/service"
	consentstore "othello/internal/consent/store"
	"othello/internal/gate"
	gatehandler "othello/internal/gate/handler"
	"othello/internal/gate/tracer"
	"othello/internal/platform/config"
	"othello/internal/platform/database"
	"othello/internal/platform/health"
	"othello/internal/platform/kafka/producer"
	"othello/internal/platform/redis"
	"othello/internal/policy"
	"othello/internal/privacy"
	sughandler "othello/internal/suggestion/handler"
	sugmetrics "othello/internal/suggestion/metrics"
	sugservice "othello/internal/suggestion/service"
	sugstore "othello/internal/suggestion/store"
	"othello/internal/suggestion/sweeper"
	httptransport "othello/internal/transport/http"
)

// App holds the wired application plus the infrastructure handles main has
// to close on shutdown. Stores are Postgres-backed when DATABASE_URL is set
// and in-memory otherwise, so the service runs without infrastructure in
// development.
type App struct {
	Router  http.Handler
	Sweeper *sweeper.Sweeper

	pool     *database.Pool
	redis    *redis.Client
	producer *producer.Producer
	auditor  *audit.Publisher
}

func buildApp(cfg config.Server, log *slog.Logger) (*App, error) {
	app := &App{}

	var (
		consentStore    consentservice.Store
		suggestionStore sugstore.Store
		auditStore      audit.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.pool = pool
		consentStore = consentstore.NewPostgres(pool.DB())
		suggestionStore = sugstore.NewPostgres(pool.DB())
		auditStore = audit.NewPostgres(pool.DB())
	} else {
		consentStore = consentstore.New()
		suggestionStore = sugstore.New()
		auditStore = audit.NewInMemoryStore()
	}

	publisherOpts := []audit.PublisherOption{audit.WithLogger(log)}
	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(cfg.Kafka, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		app.producer = prod
		publisherOpts = append(publisherOpts, audit.WithSink(audit.NewKafkaSink(prod, cfg.Kafka.AuditTopic)))
	}
	auditor := audit.NewPublisher(auditStore, publisherOpts...)
	app.auditor = auditor

	consentOpts := []consentservice.Option{consentservice.WithMetrics(consentmetrics.New())}
	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.redis = redisClient
		consentOpts = append(consentOpts, consentservice.WithTierCache(cache.New(redisClient, cfg.Redis.TierCacheTTL)))
	}
	consentSvc := consentservice.NewService(consentStore, auditor, log, consentOpts...)

	ledger := sugservice.NewService(suggestionStore, auditor, log,
		sugservice.WithMetrics(sugmetrics.New()),
		sugservice.WithTTL(cfg.SuggestionTTL),
	)

	coordinator := gate.NewCoordinator(consentSvc, policy.NewEngine(), ledger, log,
		gate.WithParallelism(cfg.BatchParallelism),
		gate.WithTracer(tracer.NewOTel()),
	)

	app.Sweeper = sweeper.New(ledger,
		sweeper.WithLogger(log),
		sweeper.WithInterval(cfg.SweepInterval),
	)

	healthHandler := health.New()
	if app.pool != nil {
		healthHandler.RegisterCheck("database", app.pool.HealthCheck)
	}
	if app.redis != nil {
		healthHandler.RegisterCheck("redis", app.redis.HealthCheck)
	}

	privacySvc := privacy.NewService(consentSvc, ledger, auditor, log)

	app.Router = httptransport.NewRouter(
		httptransport.Config{JWTSigningKey: cfg.JWTSigningKey},
		log,
		[]httptransport.Registrar{healthHandler},
		[]httptransport.Registrar{
			consenthandler.New(consentSvc, log),
			sughandler.New(ledger, coordinator, log),
			gatehandler.New(coordinator, log),
			audithandler.New(auditor, log),
			privacy.NewHandler(privacySvc, log),
		},
	)
	return app, nil
}

// Close releases infrastructure handles. Safe to call on a partially built App.
func (a *App) Close() {
	if a.auditor != nil {
		// Drain in-flight sink publishes before the producer goes away.
		a.auditor.Close()
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		_ = a.pool.Close()
	}
}
