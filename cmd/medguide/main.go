// Package main provides the medguide server and command line tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drfirst/medguide/internal/config"
)

const (
	serviceName = "medguide"
	version     = "1.0.0"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Guided medical Q&A conversations backed by the medical answer service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file to load")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(topicsCmd())
	rootCmd.AddCommand(promptsCmd())
	rootCmd.AddCommand(askCmd(load))
	rootCmd.AddCommand(auditCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
