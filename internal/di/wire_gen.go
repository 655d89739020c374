// InitializeApp below is kept in step with wire.go by hand, in the shape
// wire emits. Running wire regenerates this file from wire.go.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"PriceLens/pkg/config"
	"PriceLens/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	engine := ProvideEngine(cfg, logger)
	projector := ProvideProjector(cfg)
	seriesStore := ProvideSeriesStore(client, cfg, logger)
	redisClient := ProvideRedisClient(cfg)
	bytesCache, err := ProvideResponseCache(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	chartUseCase := ProvideChartUseCase(engine, projector, seriesStore, bytesCache, cfg, logger)
	chartHandler := ProvideChartHandler(chartUseCase, cfg, logger)
	httpServer := ProvideHTTPServer(cfg, chartHandler, logger)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	publisher := ProvideTickPublisher(producer, cfg)
	storage, err := ProvideTickStorage(client)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	redisQueue := ProvideWarmQueue(cfg, redisClient, chartUseCase, logger)
	warmScheduler := ProvideWarmScheduler(redisQueue, cfg, logger)
	tickProcessor := ProvideTickProcessor(publisher, storage, metrics, warmScheduler, cfg)
	tickCollector := ProvideTickCollector(cfg, tickProcessor, metrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		return nil, err
	}
	kafkaTicksHandler := ProvideKafkaTicksHandler(storage, metrics, warmScheduler, cfg)
	app := ProvideApp(cfg, logger, httpServer, tickCollector, consumer, kafkaTicksHandler, redisQueue, producer, redisClient, engine, client)
	return app, nil
}
