// Package cmd implements the command-line interface of the scraper control plane.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UninstallAll/AIDAscraper/internal/bootstrap"
	"github.com/UninstallAll/AIDAscraper/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "aidascraper",
		Short:         "Scraping control plane",
		Long:          `Manages site configurations and the lifecycle of scrape jobs run by external executors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.GetConfigPath("config.yml"),
		"config file (CONFIG_PATH overrides the default)",
	)
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newValidateCommand(),
		newSchemaCommand(),
		newTemplateCommand(),
		newTokenCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "aidascraper version %s\n", bootstrap.Version)
			},
		},
	)

	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
