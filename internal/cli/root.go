// Package cli holds the cobra commands of the ewm binary.
package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/capacity"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/config"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/database"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/logging"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ewm",
	Short: "Event moderation and participation service",
	Long: `Serves the explore-with-me API: events proposed by users, moderated by
admins and joined through capacity-bounded participation requests.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (default ./config.yaml)")
}

// env is what every command needs: configuration, a logger and the store.
type env struct {
	cfg     config.Config
	log     zerolog.Logger
	store   repository.Store
	tracker *capacity.Tracker
	pool    *pgxpool.Pool // nil for the memory driver
	close   func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("env", cfg.Environment).Logger()

	e := &env{cfg: cfg, log: log, close: func() {}}
	policy := repository.PolicyFromConfig(cfg.Locking)

	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on exit")
		e.store = repository.NewMemoryStore(policy, log)
	default:
		pool, err := database.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		e.store = repository.NewPostgresStore(pool, policy, log)
		e.pool = pool
		e.close = pool.Close
	}
	e.tracker = capacity.NewTracker(e.store, log)
	return e, nil
}
