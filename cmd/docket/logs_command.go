package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docket/internal/logtail"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logPath := filepath.Join(cfg.Paths.LogDir, "docket.log")
			stdout := cmd.OutOrStdout()

			recent, offset, err := logtail.LastLines(logPath, lines)
			if err != nil {
				return err
			}
			if len(recent) == 0 && !follow {
				fmt.Fprintf(stdout, "No log output at %s\n", logPath)
				return nil
			}
			for _, line := range recent {
				fmt.Fprintln(stdout, line)
			}
			if !follow {
				return nil
			}

			return logtail.Follow(cmd.Context(), logPath, offset, func(line string) {
				fmt.Fprintln(stdout, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	return cmd
}
