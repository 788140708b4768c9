// Package cmd defines and implements the CLI commands for the imgcrawl executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-image-crawler/internal/config"
	"github.com/JakeFAU/article-image-crawler/internal/logging"
)

// version is overridden at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// envKeyType is the key for storing the runtime environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env carries what every subcommand needs once the root command has run.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// newLogger is the logger factory. Tests replace it to capture output.
var newLogger = logging.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "imgcrawl",
		Short: "Downloads the images of recent habr.com articles.",
		Long: `imgcrawl walks the habr.com article feed, collects the images each
article references, and downloads them with a fixed pool of workers into
<OUT_DIR>/<article title>/<n>.jpg. SIGINT or SIGTERM stops the pool gracefully:
in-flight downloads finish, nothing new is started.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("runtime environment not initialized")
	}
	return e, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
