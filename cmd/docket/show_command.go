package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <documentID>",
		Short: "Show details and processing history for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("document id is required")
			}
			return ctx.withQueue(func(q queueAPI) error {
				detail, err := q.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if detail == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Document %s not found\n", id)
					return nil
				}
				var out strings.Builder
				writeDocumentDetail(&out, detail)
				fmt.Fprint(cmd.OutOrStdout(), out.String())
				return nil
			})
		},
	}
}
