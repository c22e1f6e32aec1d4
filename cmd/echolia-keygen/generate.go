package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/internal/keystore"
)

var (
	keystorePath   string
	rotationPeriod time.Duration
	forceOverwrite bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new server identity",
	Long: `Generate a new X25519 server identity and persist it to the given path.

If a file already exists at the path, generate refuses to overwrite it
unless --force is given.`,
	Example: `  # Generate a fresh identity with a 30-day rotation period
  echolia-keygen generate --path ./identity.bin --rotation-period 720h

  # Overwrite an existing identity
  echolia-keygen generate --path ./identity.bin --force`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&keystorePath, "path", "p", "", "Identity file path (required)")
	generateCmd.Flags().DurationVarP(&rotationPeriod, "rotation-period", "r", 30*24*time.Hour, "Rotation period")
	generateCmd.Flags().BoolVar(&forceOverwrite, "force", false, "Overwrite an existing identity file")

	generateCmd.MarkFlagRequired("path")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(keystorePath); err == nil {
		if !forceOverwrite {
			return fmt.Errorf("identity already exists at %s (use --force to overwrite)", keystorePath)
		}
		if err := os.Remove(keystorePath); err != nil {
			return fmt.Errorf("failed to remove existing identity: %w", err)
		}
	}

	ks, err := keystore.Open(keystorePath, rotationPeriod, nil)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	id := ks.Current()
	fmt.Println("Identity generated successfully!")
	fmt.Printf("  Key ID:     %s\n", id.KeyID)
	fmt.Printf("  Public Key: %x\n", id.PublicKey.Bytes())
	fmt.Printf("  Created:    %s\n", id.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Expires:    %s\n", id.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  Stored At:  %s\n", keystorePath)

	return nil
}
