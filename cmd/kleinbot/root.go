package main

import (
	"github.com/spf13/cobra"

	"github.com/fpt/klein-bot/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultConfigPath()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "kleinbot",
		Short:         "Chat bot with stickers, video downloads and AI replies",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default: ~/.kleinbot/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newConsoleCmd(opts))
	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newSchemaCmd())
	return cmd
}
