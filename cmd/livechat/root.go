package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vietstream/livechat/internal/config"
	"github.com/vietstream/livechat/internal/log"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "livechat",
		Short:         "Livestream chat client",
		Long:          "Terminal client for the livestream chat: watch and post comments, manage the operator session and the address block list.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newWatchCmd(flags),
		newLoginCmd(flags),
		newLogoutCmd(flags),
		newBlockedCmd(flags),
		newStubCmd(flags),
	)
	return cmd
}

// setup resolves config and builds the logger shared by all commands.
func setup(flags *rootFlags) (config.Config, *zerolog.Logger, error) {
	bootstrapLog := log.New("info")
	cfg, _, err := config.Load(bootstrapLog, flags.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, log.New(cfg.LogLevel), nil
}
