//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"OmniSpectrum/internal/domain/repository"
	"OmniSpectrum/pkg/config"
	"OmniSpectrum/pkg/metrics"
	"OmniSpectrum/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

		// Infrastructure clients
		ProvideCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideSnapshotStore,
		ProvideLocker,
		ProvideEventPublisher,

		// Services and use cases
		ProvideGenerator,
		ProvideStreamHub,
		ProvideSnapshotReader,
		ProvideRefresher,
		ProvideFileWatcher,
		ProvideScheduler,
		ProvideKafkaConsumer,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
