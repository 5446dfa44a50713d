package main

import (
	"github.com/spf13/cobra"

	"github.com/gopluginhost/pluginhost/utils"
)

func newDescribeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <path>",
		Short: "Parse a plug-in directory's manifest and print it as JSON",
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
			return utils.PrintJson(d)
		},
	}
}
