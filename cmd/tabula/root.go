package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tabula/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tabula",
	Short: "Tabula answers questions about tabular data with a language model",
	Long: `Tabula lets a language model analyse a CSV file one command at a time.
The model works on a stack of tables and a series register, and every result is
fed back to it until it replies with an answer.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend, _ = cmd.Flags().GetString("store")
	}
	return cfg, cfg.Validate()
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./tabula.yaml, then ~/.tabula/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "file", "Session store: memory, file or redis")
}
