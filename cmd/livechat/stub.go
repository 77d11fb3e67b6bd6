package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietstream/livechat/internal/log"
	"github.com/vietstream/livechat/internal/stub"
)

func newStubCmd(flags *rootFlags) *cobra.Command {
	cfg := stub.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the development broker and backend stand-in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(flags.logLevel)

			srv, err := stub.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&cfg.AdminUsername, "admin-user", cfg.AdminUsername, "operator username")
	cmd.Flags().StringVar(&cfg.AdminPassword, "admin-pass", cfg.AdminPassword, "operator password")
	cmd.Flags().StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "token signing secret")
	return cmd
}
