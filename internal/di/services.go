// Package di provides dependency injection for service implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/config"
	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/internal/modules/leading"
	"github.com/aristath/valuescope/internal/modules/reports"
	"github.com/aristath/valuescope/internal/modules/settings"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/system"
)

// InitializeServices creates the eastmoney client and every service.
// transport may be nil, in which case an HTTP transport with the configured
// timeout is used.
func InitializeServices(container *Container, cfg *config.Config, transport eastmoney.Transport, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	if transport == nil {
		transport = eastmoney.NewHTTPTransport(cfg.HTTPTimeout, log)
	}
	container.EastmoneyClient = eastmoney.NewClient(transport, eastmoney.Endpoints{
		Statements: cfg.Eastmoney.StatementsURL,
		Datacenter: cfg.Eastmoney.DatacenterURL,
		StockList:  cfg.Eastmoney.StockListURL,
	}, log)

	// Settings first: universe and leading record their update times in meta info
	container.SettingsService = settings.NewService(container.SettingsRepo, log)

	container.UniverseService = universe.NewService(
		container.EastmoneyClient,
		container.BaseInfoStore,
		container.SettingsService,
		log,
	)

	container.LeadingService = leading.NewService(
		container.EastmoneyClient,
		container.IndicatorStore,
		container.UniverseService,
		container.SettingsService,
		leading.Config{
			Concurrency: cfg.FetchConcurrency,
			SyncPages:   cfg.IndicatorSyncPages,
		},
		log,
	)

	container.ReportsService = reports.NewService(
		container.EastmoneyClient,
		container.LeadingService,
		container.ReportStore,
		container.UniverseService,
		reports.Config{
			Years:       cfg.ReportYears,
			Concurrency: cfg.FetchConcurrency,
		},
		log,
	)

	container.SystemService = system.NewService(
		cfg.DataDir,
		container.Databases(),
		container.CacheRepo,
		container.SettingsRepo,
		log,
	)

	container.EvalOptions = expression.Options{SmoothingFactor: cfg.SmoothingFactor}

	log.Debug().Msg("Services initialized")
	return nil
}
