package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <plugin-id>",
		Short: "Stop a running plug-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, boot, _, err := buildContext(flags)
			if err != nil {
				return err
			}
			ctx.Scan(boot.ScanFlags())
			if err := ctx.Stop(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
			return nil
		},
	}
}
