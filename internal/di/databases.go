// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/config"
	"github.com/aristath/valuescope/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. cache.db - refetchable entities (base info, leading indicators, reports)
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameCache+".db"),
		Profile: database.ProfileCache,
		Name:    database.NameCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// 2. config.db - user settings (filter schemas, indicator groups, meta info)
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameConfig+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameConfig,
	})
	if err != nil {
		cacheDB.Close()
		return nil, fmt.Errorf("failed to initialize config database: %w", err)
	}
	container.ConfigDB = configDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
