package di

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"StockSentinel/internal/collector"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/internal/engine"
	"StockSentinel/internal/handler/api"
	internalrepo "StockSentinel/internal/repository"
	"StockSentinel/internal/source/eastmoney"
	"StockSentinel/internal/source/sina"
	"StockSentinel/internal/source/tencent"
	"StockSentinel/internal/usecase"
	"StockSentinel/pkg/cache"
	pkgch "StockSentinel/pkg/clickhouse"
	"StockSentinel/pkg/config"
	xhttp "StockSentinel/pkg/http"
	pkgkafka "StockSentinel/pkg/kafka"
	applogger "StockSentinel/pkg/logger"
	"StockSentinel/pkg/metrics"
	"StockSentinel/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSources builds the fallback chain in configured priority order.
func ProvideSources(cfg *config.Config) ([]repository.Source, error) {
	sources := make([]repository.Source, 0, len(cfg.Sources.Priority))
	for _, name := range cfg.Sources.Priority {
		switch name {
		case "eastmoney":
			sources = append(sources, eastmoney.New(cfg.Sources.AttemptTimeout))
		case "tencent":
			sources = append(sources, tencent.New(cfg.Sources.AttemptTimeout))
		case "sina":
			sources = append(sources, sina.New(cfg.Sources.AttemptTimeout))
		default:
			return nil, fmt.Errorf("sources.priority: unknown source %q", name)
		}
	}
	return sources, nil
}

// ProvideCache creates the shared cache: a Redis-backed layered cache
// when Redis is configured (so breaker state survives restarts), an
// in-process cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideCollector assembles breakers, the fallback orchestrator and
// the snapshot collector.
func ProvideCollector(
	cfg *config.Config,
	sources []repository.Source,
	m repository.Metrics,
	c cache.Service,
	log *applogger.Logger,
) *collector.Collector {
	breakers := collector.NewBreakerSet(cfg.Sources.Breaker.FailureThreshold, cfg.Sources.Breaker.RecoveryTimeout)
	orch := collector.NewOrchestrator(sources, breakers, cfg.Sources, log, m)
	return collector.New(orch, cfg.Sources, log,
		collector.WithNewsCache(c, cfg.Redis.NewsTTL))
}

// ProvideEngine creates the signal engine.
func ProvideEngine(cfg *config.Config, log *applogger.Logger) *engine.Engine {
	return engine.New(cfg.Risk, log)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// memory backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRecordStore selects the record store backend.
func ProvideRecordStore(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) (repository.RecordStore, error) {
	switch cfg.Storage.Backend {
	case "clickhouse":
		return internalrepo.NewCHRecordStore(ch, log), nil
	case "memory":
		return internalrepo.NewMemoryRecordStore(), nil
	default:
		return nil, fmt.Errorf("storage.backend: unknown backend %q", cfg.Storage.Backend)
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher wraps the producer into the cycle event publisher.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) *usecase.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return usecase.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(log *applogger.Logger) *api.Hub {
	return api.NewHub(log)
}

// ProvideAnalyzer wires the cycle pipeline and attaches the optional
// bus publisher and the live stream. When Kafka is up, error logs also
// flow to it in aggregated batches.
func ProvideAnalyzer(
	cfg *config.Config,
	col *collector.Collector,
	eng *engine.Engine,
	store repository.RecordStore,
	m repository.Metrics,
	log *applogger.Logger,
	publisher *usecase.KafkaPublisher,
	hub *api.Hub,
) *usecase.Analyzer {
	a := usecase.NewAnalyzer(cfg, col, eng, store, m, log)
	a.SetBroadcaster(hub)
	if publisher != nil {
		a.SetPublisher(publisher)
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".logs",
			Publisher:      publisher,
		})
	}
	return a
}

// ProvideScheduler creates the cycle scheduler.
func ProvideScheduler(cfg *config.Config, analyzer *usecase.Analyzer, log *applogger.Logger) (*usecase.Scheduler, error) {
	return usecase.NewScheduler(analyzer, cfg.Scheduler.MiddayTime, cfg.Scheduler.CloseTime, log)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(log *applogger.Logger, analyzer *usecase.Analyzer, hub *api.Hub) xhttp.Handler {
	return api.NewSentinelHandler(log, analyzer, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	hub *api.Hub,
	scheduler *usecase.Scheduler,
	analyzer *usecase.Analyzer,
	store repository.RecordStore,
	chClient *pkgch.Client,
	publisher *usecase.KafkaPublisher,
) *server.App {
	return server.New(cfg, log, handler, hub, scheduler, analyzer, store, chClient, publisher)
}
