package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/alchemorsel/cookcard/internal/infrastructure/container"
)

var errServerStopped = errors.New("server stopped unexpectedly")

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.NopLogger,
				container.WithConfigPath(cfgFile),
				container.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				return err
			}

			exitCode := 0
			select {
			case <-ctx.Done():
			case sig := <-app.Wait():
				exitCode = sig.ExitCode
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			if err := app.Stop(stopCtx); err != nil {
				return err
			}
			if exitCode != 0 {
				return &exitError{code: exitCode, err: errServerStopped}
			}
			return nil
		},
	}
}
