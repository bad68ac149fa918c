package main

import (
	"github.com/spf13/cobra"

	"github.com/sgtm-tools/sgtm-debug/script"
)

func newScriptCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "script <domain> <header-value>",
		Short: "Print the generated mitmproxy addon without starting a proxy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := script.Render(script.Options{
				Domain:      args[0],
				HeaderName:  resolveString(cmd, "header-name", flags.headerName, flags.cfg.Header.Name),
				HeaderValue: args[1],
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}
