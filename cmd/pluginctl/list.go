package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered plug-in and its lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, boot, _, err := buildContext(flags)
			if err != nil {
				return err
			}
			ctx.Scan(boot.ScanFlags())

			handles := ctx.ListInfo()
			defer func() {
				for _, h := range handles {
					ctx.ReleaseInfo(h)
				}
			}()
			for _, h := range handles {
				d := h.Descriptor()
				state, _ := ctx.State(d.Identifier)
				version := "-"
				if d.Version != nil {
					version = d.Version.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %s\n", d.Identifier, state, version)
			}
			return nil
		},
	}
}
