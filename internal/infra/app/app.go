package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/database"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/docstore"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/errorbus"
	kafkainfra "github.com/abelngansop-dot/studio-sub000/internal/infra/kafka"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
	redisinfra "github.com/abelngansop-dot/studio-sub000/internal/infra/redis"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/telemetry"
	"github.com/abelngansop-dot/studio-sub000/internal/repository/memory"
	postgresrepo "github.com/abelngansop-dot/studio-sub000/internal/repository/postgres"
	redisrepo "github.com/abelngansop-dot/studio-sub000/internal/repository/redis"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/routes"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns every long-lived component and tears them down in reverse order.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	tracer    *telemetry.TracerProvider
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	remote    *docstore.RemoteStore
	identity  *security.TokenIdentityProvider
	services  *usecase.ServiceProvider
	listener  *usecase.ErrorListener
	forwarder *usecase.AuditForwarder
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.release(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tracer

	metrics, err := telemetry.NewSyncMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.Auth.KeyDirectory)
	if err != nil {
		return fmt.Errorf("init key provider: %w", err)
	}
	tokens := security.NewJWTManager(keyProvider, cfg.Auth.Issuer, cfg.Auth.Audience)
	a.identity = security.NewTokenIdentityProvider(tokens, log)
	policy := security.DefaultAccessPolicy()
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("init access policy: %w", err)
	}

	store, err := a.newStore(ctx, policy)
	if err != nil {
		return err
	}

	bus := errorbus.New(log)
	a.services, err = usecase.NewServiceProvider(usecase.ProviderConfig{
		Store:        store,
		Identity:     a.identity,
		Bus:          bus,
		Logger:       log,
		Metrics:      metrics,
		WriteTimeout: cfg.Store.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("init service provider: %w", err)
	}
	a.services.Start()

	toasts := usecase.NewToastFeed(cfg.Notifications.HistorySize)
	a.listener = usecase.NewErrorListener(bus, toasts, log)
	a.listener.Mount()

	a.forwarder = usecase.NewAuditForwarder(bus, a.newAuditPublisher(), a.identity, log)
	a.forwarder.Start()

	routeDeps := routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		Services:       a.services,
		Identity:       a.identity,
		Tokens:         tokens,
		Notifications:  toasts,
		Metrics:        metrics,
		TracerProvider: tracer.TracerProvider(),
	}
	if a.pool != nil {
		routeDeps.Database = a.pool
	}
	if a.redis != nil {
		routeDeps.Cache = a.redis
	}
	a.engine = routes.Register(routeDeps)

	return nil
}

func (a *Application) newStore(ctx context.Context, policy port.AccessPolicy) (port.DocumentStore, error) {
	cfg, log := a.cfg, a.logger

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		log.Info("using in-memory document store")
		return memory.NewStore(
			memory.WithAccessPolicy(policy),
			memory.WithIdentitySource(a.identity),
			memory.WithLogger(log),
		), nil
	case config.StoreDriverRemote:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	remote, err := docstore.NewRemoteStore(docstore.Config{
		Repository:  postgresrepo.NewDocumentRepository(pool),
		Feed:        redisrepo.NewChangeFeed(redisClient.Client(), cfg.Redis.ChannelPrefix, log),
		Cache:       redisrepo.NewSnapshotCache(redisClient.Client(), cfg.Redis.CachePrefix),
		Policy:      policy,
		Identity:    a.identity,
		SnapshotTTL: cfg.Redis.SnapshotTTL,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("init remote store: %w", err)
	}
	a.remote = remote

	log.Info("using remote document store",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("redis", redisClient.Name()),
	)
	return remote, nil
}

func (a *Application) newAuditPublisher() port.AuditPublisher {
	cfg, log := a.cfg, a.logger

	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub audit publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub audit publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	return kafkainfra.NewAuditPublisher(producer, cfg.App, log)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: watch streams stay open until the client leaves.
		IdleTimeout: 60 * time.Second,
	}

	a.logger.Info("starting studio admin API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	a.release(shutdownCtx)
	return runErr
}

// release stops components in reverse start order. Pending writes get the configured drain
// window before the store goes away.
func (a *Application) release(ctx context.Context) {
	if a.forwarder != nil {
		a.forwarder.Stop()
	}
	if a.listener != nil {
		a.listener.Unmount()
	}
	if a.services != nil {
		drainCtx, cancel := context.WithTimeout(ctx, a.cfg.Store.DrainTimeout)
		if err := a.services.Close(drainCtx); err != nil {
			a.logger.Warn("pending writes abandoned at shutdown", zap.Error(err))
		}
		cancel()
	}
	if a.remote != nil {
		a.remote.Close()
	}
	if a.identity != nil {
		a.identity.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
}
