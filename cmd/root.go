// Package cmd defines the showcase CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/app"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/config"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/crawler"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/dataset"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/logging"
)

// appKeyType is the key for storing the Runner in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	configKey appKeyType = "config"
)

// Runner is what the subcommands need from the application. Tests inject
// a fake through newApp.
type Runner interface {
	Crawl(ctx context.Context, startPage int) (crawler.Summary, error)
	Dedupe(ctx context.Context) (dataset.DedupeStats, error)
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger)
}

var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "showcase",
		Short: "Crawls the ETHGlobal project showcase into a CSV dataset.",
		Long: `showcase walks the paginated ETHGlobal showcase listing one page at a
time, appends every project it finds to a CSV dataset, and can reduce that
dataset to one row per project link.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON); SHOWCASE_* env vars override it")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newDedupeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (Runner, config.Config, error) {
	appInstance, ok := ctx.Value(appKey).(Runner)
	if !ok || appInstance == nil {
		return nil, config.Config{}, errors.New("application services not initialized")
	}
	cfg, _ := ctx.Value(configKey).(config.Config)
	return appInstance, cfg, nil
}

// closeApp releases the app's clients and flushes its logger. Subcommands
// defer it because cobra skips post-run hooks when RunE fails.
func closeApp(appInstance Runner) {
	appInstance.Close()
	_ = appInstance.Logger().Sync()
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
