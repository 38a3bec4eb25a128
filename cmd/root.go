// Package cmd defines and implements the CLI commands for the prerender executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobboard-prerender/internal/config"
)

var cfgFile string

// loadConfig is a variable so tests can inject a config without touching the
// environment.
var loadConfig = func() (config.Config, error) {
	return config.Load(cfgFile)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prerender",
		Short: "Serves prerendered job pages to search and social crawlers.",
		Long: `prerender sits in front of the job board's single-page app. Crawlers get
server-rendered HTML with structured data and tuned cache headers, expired
URLs get 410 Gone, and everyone else passes through to the app.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars and .env files are always read")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSlugCmd())
	cmd.AddCommand(newGoneCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
