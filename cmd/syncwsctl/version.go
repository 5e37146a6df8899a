package main

import (
	"fmt"

	"github.com/danmuck/syncws/internal/admin"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = admin.Version

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the syncwsctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "syncwsctl version %s\n", version)
			return nil
		},
	}
}
