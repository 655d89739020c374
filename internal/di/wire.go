//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PriceLens/pkg/config"
	"PriceLens/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,

		// Repositories
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideSeriesStore,
		ProvideResponseCache,

		// Analytics
		ProvideEngine,
		ProvideProjector,

		// Use cases
		ProvideChartUseCase,
		ProvideWarmQueue,
		ProvideWarmScheduler,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// Transport
		ProvideChartHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
