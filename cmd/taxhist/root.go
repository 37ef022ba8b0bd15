package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"taxhist/internal/config"
	"taxhist/internal/version"
)

var (
	// configFlag is an explicit config file; otherwise .taxhist/config.json is used
	configFlag string
	// repoFlag is the repository root; defaults to the working directory
	repoFlag string
	// logLevelFlag overrides logging.level from the config
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "taxhist",
	Short: "taxhist - taxonomy history engine",
	Long: `taxhist reconstructs the change history of a measurand taxonomy catalog
kept in a git repository. It walks the commits that touch the catalog, diffs
consecutive catalog snapshots entry by entry, filters transient remove/re-add
noise and keeps the result in a persistent cache that can be served over HTTP.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("taxhist version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (json, yaml or toml); default <repo>/.taxhist/config.json")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

// getRepoRoot returns the repository root directory.
func getRepoRoot() (string, error) {
	if repoFlag != "" {
		return filepath.Abs(repoFlag)
	}
	return os.Getwd()
}

// loadConfig resolves the repo root and loads and validates its config.
func loadConfig() (*config.Config, error) {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	var cfg *config.Config
	if configFlag != "" {
		cfg, err = config.LoadConfigFile(repoRoot, configFlag)
	} else {
		cfg, err = config.LoadConfig(repoRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
