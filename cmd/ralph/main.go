// Command ralph runs the inventory API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ralph-api/internal/config"
	"ralph-api/internal/logging"
	"ralph-api/internal/store"
	"ralph-api/internal/store/memory"
	"ralph-api/internal/store/postgres"
)

// app carries what every subcommand loads before running
type app struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ralph",
		Short:         "Ralph asset and configuration inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newTokenCmd(a),
		newUserCmd(a),
		newImportCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.LoadAndValidate(a.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// openStore opens the configured backend
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres store")
		}
		return st, nil
	case config.DriverMemory:
		a.log.Warn("using the in-memory store, data is lost on exit")
		return memory.New()
	}
	return nil, errors.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
}
