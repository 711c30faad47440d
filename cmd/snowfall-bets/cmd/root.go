package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/snowfall-bets/internal/app"
	"github.com/i474232898/snowfall-bets/internal/config"
	"github.com/i474232898/snowfall-bets/internal/estimator"
	"github.com/i474232898/snowfall-bets/internal/logger"
)

var (
	// configPath to the optional YAML configuration file.
	configPath string
	// port overrides the configured listen port.
	port string

	rootCmd = &cobra.Command{
		Use:   "snowfall-bets",
		Short: "Track accumulated snowfall and rank snowfall bets against it.",
		Long: `Polls a weather provider for today's precipitation, accumulates it into a
snowfall total that never decreases, and serves that total together with the
bet ledger and leaderboard over HTTP.

Running without a subcommand is the same as "serve".`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the poll scheduler.",
		RunE:  runServe,
	}

	pollCmd = &cobra.Command{
		Use:   "poll",
		Short: "Poll the weather provider once, persist the result and print the total.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			c, err := app.Build(cfg, log)
			if err != nil {
				return err
			}
			defer c.Close()

			total, err := app.PollOnce(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", total)
			return nil
		},
	}

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Print the persisted estimator state.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			states, closeFn, err := app.OpenStateStore(cfg)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			st, err := states.Load(cmd.Context())
			if errors.Is(err, estimator.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no persisted state; tracking starts from zero")
				return nil
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted estimator state; the next start tracks from zero.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			states, closeFn, err := app.OpenStateStore(cfg)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			if err := states.Remove(cmd.Context()); err != nil {
				return err
			}
			log.Infow("estimator state removed", "backend", cfg.StateBackend)
			return nil
		},
	}
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	c, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	return app.Serve(cmd.Context(), c)
}

// setup loads .env and configuration and builds the logger.
func setup() (*config.AppConfig, *zap.SugaredLogger, error) {
	envErr := godotenv.Load()

	path := configPath
	if v := os.Getenv("CONFIG_FILE"); v != "" && !rootCmd.PersistentFlags().Changed("config") {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if port != "" {
		cfg.Port = port
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	log := logger.New(level)
	if !ok {
		log.Warnw("unknown log level, using info", "level", cfg.LogLevel)
	}
	if envErr != nil {
		log.Debugw("no .env file loaded", "error", envErr)
	}
	return cfg, log, nil
}

// Execute runs the CLI and exits with non-zero status on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.RunE = runServe
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to configuration file")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")

	rootCmd.AddCommand(serveCmd, pollCmd, stateCmd, resetCmd)
}
