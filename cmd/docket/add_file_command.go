package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docket/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path...>",
		Short: "Queue files for processing without copying them into the inbox by hand",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve path %q: %w", arg, err)
					}
					resp, err := client.AddFile(path)
					if err != nil {
						return fmt.Errorf("add %s: %w", arg, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (document %s)\n",
						resp.Document.OriginalFilename, shortID(resp.Document.ID))
				}
				return nil
			})
		},
	}
}
