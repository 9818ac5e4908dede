// Package factory constructs infrastructure adapters from configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kikilabs/kiki-reminders/internal/config"
	"github.com/kikilabs/kiki-reminders/internal/store"
	"github.com/kikilabs/kiki-reminders/internal/store/postgres"
	"github.com/kikilabs/kiki-reminders/internal/store/sqlite"
)

// NewStore builds the reminder store selected by cfg.DBDriver.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		return sqlite.New(cfg.SQLitePath)
	case "postgres":
		log.Info().Msg("using postgres store")
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewWithDB(db)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
