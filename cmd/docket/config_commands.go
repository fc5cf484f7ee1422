package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docket/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage docket configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(targetPath)
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			written, err := config.CreateSample(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", written)
			fmt.Fprintln(cmd.OutOrStdout(), "Edit the file and run `docket config validate` to check it.")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the sample configuration file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file and directory layout",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}

			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Config file:   %s\n", resolvedPath)
			fmt.Fprintf(stdout, "File exists:   %s\n", yesNo(exists))
			if !exists {
				fmt.Fprintln(stdout, "Using built-in defaults (run `docket config init` to create a file)")
			}
			fmt.Fprintf(stdout, "Inbox:         %s\n", cfg.Paths.InboxDir)
			fmt.Fprintf(stdout, "Library:       %s\n", cfg.Paths.LibraryDir)
			fmt.Fprintf(stdout, "Log directory: %s\n", cfg.Paths.LogDir)
			fmt.Fprintln(stdout, "Configuration valid")
			return nil
		},
	}
}
