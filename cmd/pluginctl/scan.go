package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan configured plug-in directories and install what's found",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, boot, _, err := buildContext(flags)
			if err != nil {
				return err
			}
			chain := ctx.Scan(boot.ScanFlags())
			if chain.HasErrors() {
				return chain
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scan complete")
			return nil
		},
	}
}
