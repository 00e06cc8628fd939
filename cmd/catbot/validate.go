package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/The-Earth/catbot/bot"
	"github.com/spf13/cobra"
)

var validateConfigFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a catbot configuration file",
	Long: `Validate the configuration file without starting the bot.

This command checks:
  - YAML syntax
  - Environment variable references
  - Token presence
  - Poll, retry, worker and storage settings

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		configFile := validateConfigFile
		if configFile == "" {
			for _, loc := range []string{
				"config.yaml",
				filepath.Join(os.Getenv("HOME"), ".config/catbot/config.yaml"),
				"/etc/catbot/config.yaml",
			} {
				if _, err := os.Stat(loc); err == nil {
					configFile = loc
					break
				}
			}
		}
		if configFile == "" {
			fmt.Fprintln(os.Stderr, "no configuration file found")
			os.Exit(1)
		}

		cfg, err := bot.LoadConfig(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration %s: %v\n", configFile, err)
			os.Exit(1)
		}

		fmt.Printf("configuration %s is valid\n", configFile)
		fmt.Printf("  poll timeout:   %s\n", cfg.Poll.Timeout())
		fmt.Printf("  batch limit:    %d\n", cfg.Poll.Limit)
		fmt.Printf("  max handlers:   %d\n", cfg.Workers.MaxConcurrent)
		if cfg.Storage.SQLitePath != "" {
			fmt.Printf("  cursor store:   sqlite (%s)\n", cfg.Storage.SQLitePath)
		} else {
			fmt.Printf("  cursor store:   file (%s)\n", cfg.Storage.CursorFile)
		}
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Path to configuration file")
}
