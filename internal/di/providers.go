package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"PriceLens/internal/domain/repository"
	"PriceLens/internal/handler/api"
	mid "PriceLens/internal/middleware"
	internalrepo "PriceLens/internal/repository"
	icache "PriceLens/internal/service/cache"
	"PriceLens/internal/service/finnhub"
	chartmetrics "PriceLens/internal/service/metrics"
	"PriceLens/internal/service/ratelimit"
	"PriceLens/internal/services/analytics"
	"PriceLens/internal/usecase"
	pkgcache "PriceLens/pkg/cache"
	pkgch "PriceLens/pkg/clickhouse"
	"PriceLens/pkg/config"
	xhttp "PriceLens/pkg/http"
	pkgkafka "PriceLens/pkg/kafka"
	"PriceLens/pkg/logger"
	"PriceLens/pkg/metrics"
	"PriceLens/pkg/queue"
	"PriceLens/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the
// chart collectors.
func ProvideMetrics() repository.Metrics {
	chartmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxOpenConns/2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisClient creates the shared Redis client, or nil when Redis is
// disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideTickStorage creates ClickHouse tick storage and ensures its table.
func ProvideTickStorage(client *pkgch.Client) (repository.Storage, error) {
	store := internalrepo.NewClickHouseStorage(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideTickPublisher creates the Kafka tick publisher, nil without a
// producer.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSeriesStore reads charts from ClickHouse behind a circuit breaker,
// falling back to Finnhub candles when an API key is configured.
func ProvideSeriesStore(client *pkgch.Client, cfg *config.Config, log *logger.Logger) repository.SeriesStore {
	primary := internalrepo.NewCHSeriesStore(client, cfg.Chart.MaxPoints, log)
	var fallback repository.SeriesStore
	if cfg.Finnhub.APIKey != "" {
		hc := xhttp.NewClient(xhttp.WithTimeout(cfg.Finnhub.Timeout))
		fallback = finnhub.NewCandleClient(cfg.Finnhub.RESTURL, cfg.Finnhub.APIKey, hc)
	}
	return internalrepo.NewResilientSeriesStore(primary, fallback, internalrepo.BreakerSettings{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, log)
}

// ProvideEngine builds the memoized analysis engine from the chart config.
func ProvideEngine(cfg *config.Config, log *logger.Logger) *analytics.Engine {
	memo := pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Chart.MemoSize),
		pkgcache.WithMemoryTTL(cfg.Chart.MemoTTL),
	)
	return analytics.NewEngine(
		analytics.NewRegimeDetector(cfg.Chart.Regime),
		analytics.NewBandForecaster(cfg.Chart.Forecast),
		analytics.WithMemo(memo, cfg.Chart.MemoTTL),
		analytics.WithVolWindow(cfg.Chart.Regime.VolWindow),
		analytics.WithLogger(log),
	)
}

func ProvideProjector(cfg *config.Config) *analytics.Projector {
	return analytics.NewProjector(cfg.Chart.Density)
}

// ProvideResponseCache caches encoded chart responses in memory, backed by
// Redis when enabled so replicas share entries.
func ProvideResponseCache(cfg *config.Config, rdb *redis.Client) (icache.BytesCache, error) {
	if rdb == nil {
		mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemorySize))
		return icache.NewServiceCache(mc, "chart"), nil
	}
	rc, err := pkgcache.NewRedisCache(pkgcache.WithRedisClient(rdb), pkgcache.WithRedisPrefix(cfg.Redis.Prefix))
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		pkgcache.WithLayeredMemoryTTL(cfg.Cache.ResponseTTL),
	)
	return icache.NewServiceCache(lc, "chart"), nil
}

// ProvideChartUseCase creates the chart use case.
func ProvideChartUseCase(
	engine *analytics.Engine,
	projector *analytics.Projector,
	store repository.SeriesStore,
	bc icache.BytesCache,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.ChartUseCase {
	return usecase.NewChartUseCase(engine, projector, store, bc, usecase.ChartOptions{
		Benchmark:   cfg.Chart.Benchmark,
		HitRadius:   cfg.Chart.HitRadius,
		Viewport:    cfg.Chart.Viewport,
		ResponseTTL: cfg.Cache.ResponseTTL,
		Timeout:     cfg.Server.WriteTimeout,
	}, log)
}

// ProvideWarmQueue creates the Redis job queue that warms chart analyses,
// nil when the queue is disabled.
func ProvideWarmQueue(cfg *config.Config, rdb *redis.Client, uc *usecase.ChartUseCase, log *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rdb == nil {
		return nil
	}
	q := queue.NewRedisQueue(log.With(logger.String("component", "queue")), &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		JobTimeout: cfg.Queue.Timeout,
	}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue:"+cfg.Queue.Name))
	q.RegisterJob(usecase.NewWarmJob(uc, log))
	return q
}

// ProvideWarmScheduler debounces warm-ups onto the queue, nil without one.
func ProvideWarmScheduler(q *queue.RedisQueue, cfg *config.Config, log *logger.Logger) *usecase.WarmScheduler {
	if q == nil {
		return nil
	}
	return usecase.NewWarmScheduler(q, cfg.Queue.Debounce, nil, log)
}

// ProvideTickProcessor creates the batch router and hooks warm-ups onto
// stored batches.
func ProvideTickProcessor(
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
	warm *usecase.WarmScheduler,
	cfg *config.Config,
) *usecase.TickProcessor {
	p := usecase.NewTickProcessor(pub, store, m, cfg.Backend.Type)
	if warm != nil && cfg.Backend.Type == usecase.BackendClickHouse {
		p.OnStored(warm.Notify)
	}
	return p
}

// ProvideTickCollector wires the Finnhub stream into the realtime
// pipeline, nil when Finnhub is disabled.
func ProvideTickCollector(
	cfg *config.Config,
	proc *usecase.TickProcessor,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.TickCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		log,
	)
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(50),
		mid.WithBatch(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
		mid.WithBufferSize(cfg.Backend.BatchSize*4),
		mid.WithLogger(log),
	)
	return usecase.NewTickCollector(stream, pipe, m, log)
}

// ProvideKafkaConsumer creates a Kafka consumer, nil unless enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(&pkgkafka.TraceHook{})
	return consumer, nil
}

// ProvideKafkaTicksHandler stores consumed ticks.
func ProvideKafkaTicksHandler(store repository.Storage, m repository.Metrics, warm *usecase.WarmScheduler, cfg *config.Config) *usecase.KafkaTicksHandler {
	h := usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, m)
	if warm != nil {
		h.OnStored(warm.Notify)
	}
	return h
}

// ProvideChartHandler exposes the chart routes behind the rate limiter.
func ProvideChartHandler(uc *usecase.ChartUseCase, cfg *config.Config, log *logger.Logger) *api.ChartHandler {
	lim := ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, 10*time.Minute)
	return api.NewChartHandler(log, uc, lim.Middleware())
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ChartHandler, log *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
		xhttp.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the application and attaches error-log collection
// to Kafka when a collect topic is set.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	ticks *usecase.KafkaTicksHandler,
	q *queue.RedisQueue,
	producer *pkgkafka.Producer,
	rdb *redis.Client,
	engine *analytics.Engine,
	client *pkgch.Client,
) *server.App {
	if producer != nil && cfg.Log.CollectTopic != "" {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: 100,
			Topic:          cfg.Log.CollectTopic,
			Publisher:      producer,
		})
	}

	closers := []server.Closer{
		{Name: "log collector", Close: func() error { log.RemoveCollector(); return nil }},
		{Name: "analysis engine", Close: engine.Close},
	}
	// shared clients close last
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka producer", Close: producer.Close})
	}
	if rdb != nil {
		closers = append(closers, server.Closer{Name: "redis", Close: rdb.Close})
	}
	closers = append(closers, server.Closer{Name: "clickhouse", Close: client.Close})

	return server.New(cfg, log, server.Components{
		HTTP:      httpServer,
		Collector: collector,
		Consumer:  consumer,
		Ticks:     ticks,
		Queue:     q,
		Closers:   closers,
	})
}
