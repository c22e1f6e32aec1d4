package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/internal/config"
)

var scaffoldConfigPath string

var scaffoldConfigCmd = &cobra.Command{
	Use:   "scaffold-config",
	Short: "Write a default GatewayConfig file to disk",
	Example: `  echolia-keygen scaffold-config --path ./config/default.yaml`,
	RunE: runScaffoldConfig,
}

func init() {
	rootCmd.AddCommand(scaffoldConfigCmd)

	scaffoldConfigCmd.Flags().StringVarP(&scaffoldConfigPath, "path", "p", "config/default.yaml", "Output config file path")
}

func runScaffoldConfig(cmd *cobra.Command, args []string) error {
	if dir := filepath.Dir(scaffoldConfigPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	cfg := &config.Config{}
	// SaveToFile doesn't fill defaults itself; load-then-save round-trips
	// through LoadFromFile's default-filling so the scaffold is complete.
	if err := config.SaveToFile(cfg, scaffoldConfigPath); err != nil {
		return fmt.Errorf("failed to write placeholder config: %w", err)
	}
	loaded, err := config.LoadFromFile(scaffoldConfigPath)
	if err != nil {
		return fmt.Errorf("failed to reload placeholder config: %w", err)
	}
	if err := config.SaveToFile(loaded, scaffoldConfigPath); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	fmt.Printf("Default configuration written to %s\n", scaffoldConfigPath)
	return nil
}
