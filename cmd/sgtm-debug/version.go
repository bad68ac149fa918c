package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sgtm-tools/sgtm-debug/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sgtm-debug version",
		Args:  cobra.NoArgs,
		// no config needed to print a version
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sgtm-debug "+version.String())
		},
	}
}
