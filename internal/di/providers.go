package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"OmniSpectrum/internal/domain/repository"
	dservice "OmniSpectrum/internal/domain/service"
	"OmniSpectrum/internal/handler/api"
	internalrepo "OmniSpectrum/internal/repository"
	"OmniSpectrum/internal/service/ratelimit"
	"OmniSpectrum/internal/service/scheduler"
	"OmniSpectrum/internal/service/stream"
	"OmniSpectrum/internal/service/watcher"
	"OmniSpectrum/internal/services/inference"
	"OmniSpectrum/internal/usecase"
	"OmniSpectrum/pkg/cache"
	pkgch "OmniSpectrum/pkg/clickhouse"
	"OmniSpectrum/pkg/config"
	xhttp "OmniSpectrum/pkg/http"
	pkgkafka "OmniSpectrum/pkg/kafka"
	"OmniSpectrum/pkg/logger"
	"OmniSpectrum/pkg/metrics"
	"OmniSpectrum/pkg/server"
)

// lockGrace is added to the inference budget so a lock never expires
// under a run that is still inside its deadline.
const lockGrace = 30 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideCache creates the cache used by the redis/memory stores and the
// refresh lock. Redis is only dialled when something needs it.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if cfg.Store.Backend != "redis" && !cfg.Refresh.DistributedLock {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Store.Redis.Addr),
		cache.WithRedisPassword(cfg.Store.Redis.Password),
		cache.WithRedisDB(cfg.Store.Redis.DB),
		cache.WithRedisPool(cfg.Store.Redis.PoolSize, 2, 5*time.Second),
		cache.WithRedisPrefix(cfg.Store.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideSnapshotStore selects the store backend from config.
func ProvideSnapshotStore(cfg *config.Config, c cache.Service, l *logger.Logger) (repository.SnapshotStore, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case "file":
		return internalrepo.NewFileStore(cfg.Store.Path), noop, nil
	case "redis", "memory":
		// the cache provider owns the connection
		return internalrepo.NewCacheStore(c), noop, nil
	case "sqlite":
		db, err := internalrepo.OpenSQLite(cfg.Store.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		s, err := internalrepo.NewGormStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "clickhouse":
		ch := cfg.Store.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := internalrepo.NewClickHouseStore(ctx, client, ch.Database, l)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// ProvideLocker returns the cross-replica refresh lock, or nil when disabled.
func ProvideLocker(cfg *config.Config, c cache.Service) repository.Locker {
	if !cfg.Refresh.DistributedLock {
		return nil
	}
	return c
}

// ProvideKafkaProducer creates a Kafka producer, or nil when events are disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Events.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Events.Brokers),
		pkgkafka.WithCompression(cfg.Events.Compression),
		pkgkafka.WithRequiredAcks(cfg.Events.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Events.RetryMax),
		pkgkafka.WithWriteTimeout(cfg.Events.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher publishes refresh events, or returns nil without a producer.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Events.Topic)
}

// ProvideGenerator creates the inference process launcher.
func ProvideGenerator(cfg *config.Config, l *logger.Logger, m repository.Metrics) dservice.ForecastGenerator {
	return inference.NewProcessGenerator(inference.OptionsFromConfig(cfg), l, m)
}

func ProvideStreamHub(l *logger.Logger) *stream.Hub {
	return stream.NewHub(l)
}

func ProvideSnapshotReader(cfg *config.Config, store repository.SnapshotStore) *usecase.SnapshotReader {
	return usecase.NewSnapshotReader(store, cfg.Serve.LocalCacheTTL)
}

// ProvideRefresher creates the refresh orchestrator and subscribes the
// reader cache and the stream hub to its results.
func ProvideRefresher(
	cfg *config.Config,
	gen dservice.ForecastGenerator,
	store repository.SnapshotStore,
	pub repository.EventPublisher,
	lock repository.Locker,
	m repository.Metrics,
	l *logger.Logger,
	reader *usecase.SnapshotReader,
	hub *stream.Hub,
) *usecase.Refresher {
	r := usecase.NewRefresher(gen, store, pub, lock, m, l, usecase.RefreshOptions{
		Overlap:        cfg.Refresh.Overlap,
		LockTTL:        cfg.InferenceBudget() + lockGrace,
		PublishTimeout: cfg.Refresh.PublishTimeout,
	})
	r.AddListener(reader)
	if cfg.Stream.Enabled {
		r.AddListener(hub)
	}
	return r
}

// ProvideFileWatcher watches the file store for writes made by other
// processes. Nil unless the file backend is in use.
func ProvideFileWatcher(
	cfg *config.Config,
	store repository.SnapshotStore,
	l *logger.Logger,
	reader *usecase.SnapshotReader,
	hub *stream.Hub,
	r *usecase.Refresher,
) *watcher.FileWatcher {
	fs, ok := store.(*internalrepo.FileStore)
	if !ok || !cfg.Stream.WatchFile {
		return nil
	}
	listeners := []repository.SnapshotListener{reader}
	if cfg.Stream.Enabled {
		listeners = append(listeners, hub)
	}
	w := watcher.NewFileWatcher(fs.Path(), store, l, listeners...)
	r.AddListener(w)
	return w
}

// ProvideScheduler registers the periodic refresh, or returns nil without a schedule.
func ProvideScheduler(cfg *config.Config, l *logger.Logger, r *usecase.Refresher) (*scheduler.Runner, error) {
	if cfg.Refresh.Schedule == "" {
		return nil, nil
	}
	runner := scheduler.New(context.Background(), l)
	if _, err := runner.Add(cfg.Refresh.Schedule, func(ctx context.Context) {
		if _, err := r.Refresh(ctx); err != nil {
			l.Warn("scheduled refresh failed", logger.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", cfg.Refresh.Schedule, err)
	}
	return runner, nil
}

// ProvideKafkaConsumer consumes refresh triggers, or returns nil when not configured.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger, r *usecase.Refresher) (*pkgkafka.Consumer, error) {
	if !cfg.Events.Enabled || cfg.Events.TriggerTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Events.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Events.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Events.RetryMax, cfg.Events.BackoffMin, cfg.Events.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Events.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	consumer.RegisterHandler(usecase.NewRefreshTriggerHandler(cfg.Events.TriggerTopic, r, l))
	return consumer, nil
}

// ProvideHTTPServer builds the echo server with the snapshot and stream routes.
func ProvideHTTPServer(
	cfg *config.Config,
	l *logger.Logger,
	reader *usecase.SnapshotReader,
	r *usecase.Refresher,
	hub *stream.Hub,
) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewSnapshotEchoHandler(l, reader, r, ratelimit.New(cfg.Refresh.Burst, cfg.Refresh.RateLimit), cfg.Serve.CacheMaxAge),
	}
	if cfg.Stream.Enabled {
		handlers = append(handlers, api.NewStreamHandler(l, hub, reader, cfg.Stream.PingInterval))
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application and attaches the log collector when
// events are enabled.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	hub *stream.Hub,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	sched *scheduler.Runner,
	fw *watcher.FileWatcher,
) (*server.App, func()) {
	cleanup := func() {}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Log.Collector.Interval,
			Topic:        cfg.Events.Topic + ".logs",
			Publisher:    producer,
		})
		cleanup = l.RemoveCollector
	}
	return server.New(cfg, l, httpServer, hub, consumer, sched, fw), cleanup
}
