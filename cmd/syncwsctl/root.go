package main

import (
	"fmt"

	"github.com/danmuck/syncws/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	output     string
	adminAddr  string

	cfg runtimeConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "syncwsctl",
		Short: "Blocking WebSocket client and DevTools log replayer",
		Long: `syncwsctl drives a WebSocket endpoint through a blocking session:
send a message and wait for the reply, follow a feed with reconnects,
or replay the DevTools commands recorded in a driver debug log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, err := normalizeOutput(opts.output)
			if err != nil {
				return err
			}
			opts.output = format

			cfg := defaultRuntimeConfig()
			if opts.configPath != "" {
				cfg, err = loadRuntimeConfig(opts.configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}
			if cmd.Flags().Changed("admin-addr") {
				cfg.AdminAddr = opts.adminAddr
			}
			logging.ApplyLevel(cfg.LogLevel)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "syncwsctl TOML config file")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&opts.adminAddr, "admin-addr", "", "serve /health, /ready, /status and /metrics on this address")

	cmd.AddCommand(
		newSendCmd(opts),
		newListenCmd(opts),
		newReplayCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}
