package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInstallCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <path>",
		Short: "Load a descriptor from a plug-in directory and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, _, err := buildContext(flags)
			if err != nil {
				return err
			}
			d, err := ctx.LoadDescriptor(args[0])
			if err != nil {
				return err
			}
			rp, err := ctx.Install(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s (state=%s)\n", rp.ID(), rp.State)
			return nil
		},
	}
}
