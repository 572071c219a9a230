// Package main implements the cookcard command-line interface
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/application/extraction"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/infrastructure/container"
	"github.com/alchemorsel/cookcard/pkg/logger"
)

var (
	version = "dev"

	cfgFile string
	debug   bool
)

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cookcard",
		Short:         "Turn cooking video links into evidence-backed recipe cards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./configs/config.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	root.AddCommand(
		newExtractCommand(),
		newQuotaCommand(),
		newTierCommand(),
		newCardsCommand(),
		newHealthCommand(),
		newServeCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "cookcard %s\n", version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// commandDeps is what one-shot commands pull out of the container
type commandDeps struct {
	fx.In

	Config      *config.Config
	Logger      *zap.Logger
	Service     *extraction.Service
	Persistence *container.Persistence
}

// runWithDeps starts the core graph, runs fn, and stops the graph again
func runWithDeps(ctx context.Context, fn func(context.Context, commandDeps) error) error {
	var deps commandDeps
	app := fx.New(
		fx.NopLogger,
		container.WithConfigPath(cfgFile),
		container.CoreModule,
		fx.Decorate(func(cfg *config.Config) (*zap.Logger, error) {
			level := "warn"
			if debug {
				level = "debug"
			}
			return logger.New(logger.Config{Level: level, Format: "console", Stderr: true})
		}),
		fx.Invoke(func(d commandDeps) { deps = d }),
	)
	if err := app.Err(); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	runErr := fn(ctx, deps)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
