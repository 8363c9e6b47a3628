package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/ingamehud/internal/config"
	"github.com/mcoot/ingamehud/internal/factory"
)

func loadConfig() (config.Config, error) {
	return config.Load(cfg.ConfigPath, cfg.EnvFile)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the settings sync service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Verbose {
				appCfg.Log.Level = "debug"
			}

			logger := appCfg.Log.NewLogger(os.Stdout)
			slog.SetDefault(logger)

			app, err := factory.New(appCfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("service starting",
				slog.String("admin_addr", appCfg.Admin.Addr),
				slog.Bool("events", appCfg.Events.Enabled),
			)
			if err := app.Run(ctx); err != nil {
				logger.Error("service error", slog.String("error", err.Error()))
				return err
			}

			logger.Info("service stopped")
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and try each storage provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := appCfg.Log.NewLogger(cmd.ErrOrStderr())
			app, err := factory.New(appCfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Router.Close() }()

			res := app.Initialize(cmd.Context())

			result := CheckResult{Provider: res.Provider}
			for _, a := range res.Attempts {
				attempt := CheckAttempt{Provider: a.Provider}
				if a.Err != nil {
					attempt.Error = a.Err.Error()
				}
				result.Attempts = append(result.Attempts, attempt)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)

			if !res.Connected() {
				return errNoStorage
			}
			return nil
		},
	}
}
