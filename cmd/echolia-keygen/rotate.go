package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/internal/keystore"
)

var forceRotate bool

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate the stored identity",
	Long: `Rotate generates a fresh X25519 identity and persists it in place of the
current one, unless the current identity is not yet due for rotation — in
which case pass --force to rotate anyway.`,
	Example: `  # Rotate only if the current identity has passed its rotation deadline
  echolia-keygen rotate --path ./identity.bin --rotation-period 720h

  # Rotate immediately regardless of expiry
  echolia-keygen rotate --path ./identity.bin --force`,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)

	rotateCmd.Flags().StringVarP(&keystorePath, "path", "p", "", "Identity file path (required)")
	rotateCmd.Flags().DurationVarP(&rotationPeriod, "rotation-period", "r", 30*24*time.Hour, "Rotation period")
	rotateCmd.Flags().BoolVar(&forceRotate, "force", false, "Rotate even if not yet due")

	rotateCmd.MarkFlagRequired("path")
}

func runRotate(cmd *cobra.Command, args []string) error {
	ks, err := keystore.Open(keystorePath, rotationPeriod, nil)
	if err != nil {
		return fmt.Errorf("failed to open identity: %w", err)
	}

	oldID := ks.Current()

	checkAt := time.Now()
	if forceRotate {
		// RotateIfStale only rotates once "now" is after ExpiresAt; treating
		// one second past the deadline as "now" forces rotation unconditionally.
		checkAt = oldID.ExpiresAt.Add(time.Second)
	}

	if err := ks.RotateIfStale(checkAt); err != nil {
		return fmt.Errorf("rotation failed: %w", err)
	}

	newID := ks.Current()
	if bytes.Equal(newID.PublicKey.Bytes(), oldID.PublicKey.Bytes()) {
		fmt.Println("Identity is not due for rotation; use --force to rotate anyway.")
		return nil
	}

	fmt.Println("Identity rotated successfully!")
	fmt.Printf("  Old Key ID: %s\n", oldID.KeyID)
	fmt.Printf("  New Key ID: %s\n", newID.KeyID)
	fmt.Printf("  Expires:    %s\n", newID.ExpiresAt.Format(time.RFC3339))

	return nil
}
