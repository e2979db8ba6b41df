// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clientdata"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/settings"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())

	baseInfo, err := clientdata.NewStore[domain.StockBaseInfo](container.CacheRepo, clientdata.TableStockBaseInfo)
	if err != nil {
		return fmt.Errorf("failed to create base info store: %w", err)
	}
	container.BaseInfoStore = baseInfo

	indicators, err := clientdata.NewStore[domain.StockWithLeadingIndicators](container.CacheRepo, clientdata.TableLeadingIndicators)
	if err != nil {
		return fmt.Errorf("failed to create leading indicator store: %w", err)
	}
	container.IndicatorStore = indicators

	reportStore, err := clientdata.NewStore[domain.StockWithReports](container.CacheRepo, clientdata.TableFinancialReports)
	if err != nil {
		return fmt.Errorf("failed to create financial report store: %w", err)
	}
	container.ReportStore = reportStore

	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
