/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the application and is
 * the single source of truth for service instances. It is created by Wire()
 * and handed to the HTTP server, which builds its handlers from it.
 */
package di

import (
	"errors"

	"github.com/aristath/valuescope/internal/clientdata"
	"github.com/aristath/valuescope/internal/clients/eastmoney"
	"github.com/aristath/valuescope/internal/database"
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
	"github.com/aristath/valuescope/internal/modules/cleanup"
	"github.com/aristath/valuescope/internal/modules/leading"
	"github.com/aristath/valuescope/internal/modules/reports"
	"github.com/aristath/valuescope/internal/modules/settings"
	"github.com/aristath/valuescope/internal/modules/universe"
	"github.com/aristath/valuescope/internal/scheduler"
	"github.com/aristath/valuescope/internal/system"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: cache (refetchable entities) and config (user settings)
 * - Repositories: id-keyed JSON stores over the cache tables, settings key/value store
 * - Clients: eastmoney remote API
 * - Services: universe, leading indicators, financial reports, settings, system
 */
type Container struct {
	// Databases
	CacheDB  *database.DB
	ConfigDB *database.DB

	// Repositories
	CacheRepo      *clientdata.Repository
	BaseInfoStore  *clientdata.Store[domain.StockBaseInfo]
	IndicatorStore *clientdata.Store[domain.StockWithLeadingIndicators]
	ReportStore    *clientdata.Store[domain.StockWithReports]
	SettingsRepo   *settings.Repository

	// Clients
	EastmoneyClient *eastmoney.Client

	// Services
	SettingsService *settings.Service
	UniverseService *universe.Service
	LeadingService  *leading.Service
	ReportsService  *reports.Service
	SystemService   *system.Service

	// EvalOptions configures expression evaluation for the screening handlers
	EvalOptions expression.Options
}

// Databases returns the open databases in a stable order
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.CacheDB, c.ConfigDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every database held by the container
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JobInstances holds the scheduled jobs so they can also be run on demand
type JobInstances struct {
	IndicatorRefresh *leading.RefreshJob
	OrphanCleanup    *cleanup.OrphanCleanupJob
	CheckDatabases   *scheduler.CheckDatabasesJob
	WALCheckpoint    *scheduler.WALCheckpointJob
}
