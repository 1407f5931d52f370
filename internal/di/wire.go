//go:build wireinject
// +build wireinject

package di

import (
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Collection chain
		ProvideSources,
		ProvideCache,
		ProvideCollector,

		// Signal pipeline
		ProvideEngine,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRecordStore,
		ProvideKafkaProducer,
		ProvidePublisher,

		// Use cases and HTTP surface
		ProvideHub,
		ProvideAnalyzer,
		ProvideScheduler,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
