package main

import (
	"context"
	"errors"
	"time"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/store/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// opener connects to the database named by cfg.
type opener func(cfg goWarden.DatabaseConfig) (*postgres.Store, error)

func defaultOpener(cfg goWarden.DatabaseConfig) (*postgres.Store, error) {
	return postgres.Open(cfg)
}

type app struct {
	configPath string
	envFiles   []string
	timeout    time.Duration
	open       opener

	cfg goWarden.Config
	log *zap.Logger
}

func newRootCmd(open opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "wardenctl",
		Short:         "Administer goWarden users, roles and audit trails",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (env WARDEN_* overrides it)")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "deadline for database operations")

	root.AddCommand(
		newHashPasswordCmd(a),
		newCatalogCmd(a),
		newConfigCmd(a),
		newMigrateCmd(a),
		newSeedRolesCmd(a),
		newUserCmd(a),
		newTrailCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := goWarden.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := goWarden.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(logging.Config{
		Env:         cfg.Logging.Env,
		Level:       cfg.Logging.Level,
		ServiceName: "wardenctl",
	})
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *postgres.Store) error) error {
	if a.cfg.Database.DSN == "" {
		return errors.New("database DSN not configured (database.dsn or WARDEN_DATABASE_DSN)")
	}
	s, err := a.open(a.cfg.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	return fn(logging.ToContext(ctx, a.log), s)
}
