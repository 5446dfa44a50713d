package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start <plugin-id>",
		Short: "Resolve and start a registered plug-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, boot, _, err := buildContext(flags)
			if err != nil {
				return err
			}
			if chain := ctx.Scan(boot.ScanFlags()); chain.HasErrors() {
				fmt.Fprintln(cmd.ErrOrStderr(), chain.Error())
			}
			if err := ctx.Start(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
			return nil
		},
	}
}
