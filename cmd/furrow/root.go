package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/pkg/config"
)

var (
	verbose    bool
	configPath string
	output     string
	showEvents bool

	// cfg is the effective configuration, loaded before any command runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "furrow",
	Short: "A Unit of Work scoped data service over memory, SQLite or PostgreSQL",
	Long: `Furrow drives the demo product catalog through generic data services.
Every command runs in its own Unit of Work and commits at most once.

Configuration is read from --config, or from the nearest furrow.yaml found
walking up from the working directory, then overridden by FURROW_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		if output != "json" && output != "yaml" {
			return fmt.Errorf("unknown output format %q (want json or yaml)", output)
		}
		setupLogger(cfg.Log, verbose)
		return nil
	},
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := furrow.FindConfig(wd)
	if errors.Is(err, furrow.ErrNoConfig) {
		return "", nil
	}
	return path, err
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a furrow.yaml file")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().BoolVar(&showEvents, "events", false, "Print committed changes to stderr")
}
