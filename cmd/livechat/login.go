package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietstream/livechat/internal/api"
	"github.com/vietstream/livechat/internal/session"
)

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate as an operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sess, err := session.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer sess.Close()

			resp, err := api.New(cfg.APIBaseURL).Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			err = sess.SetCredential(ctx, resp.Token, session.AdminUser{
				ID:       resp.User.ID,
				Username: resp.User.Username,
				Role:     resp.User.Role,
			})
			if err != nil {
				return err
			}

			logger.Info().Str("username", resp.User.Username).Msg("logged in")
			fmt.Printf("logged in as %s\n", resp.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "operator username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "operator password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the operator session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sess, err := session.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer sess.Close()

			// Server-side invalidation is best effort; the local
			// credential goes away regardless.
			if token, err := sess.Token(ctx); err == nil && token != "" {
				if err := api.New(cfg.APIBaseURL).Logout(ctx, token); err != nil {
					logger.Warn().Err(err).Msg("server-side logout failed")
				}
			}

			if err := sess.ClearCredential(ctx); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}
