package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/internal/keystore"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the stored identity's key ID, public key, and expiry",
	Example: `  echolia-keygen inspect --path ./identity.bin`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&keystorePath, "path", "p", "", "Identity file path (required)")
	inspectCmd.MarkFlagRequired("path")
}

func runInspect(cmd *cobra.Command, args []string) error {
	// A long rotation period keeps Open from silently generating a
	// replacement identity just because it looks stale relative to
	// whatever period the running gateway actually uses.
	ks, err := keystore.Open(keystorePath, 100*365*24*time.Hour, nil)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	view := ks.CurrentPublicView()
	fmt.Printf("Key ID:     %s\n", view.KeyID)
	fmt.Printf("Public Key: %x\n", view.PublicKey)
	fmt.Printf("Expires:    %s\n", view.ExpiresAt.Format(time.RFC3339))

	if time.Now().After(view.ExpiresAt) {
		fmt.Println("Status:     past rotation deadline")
	} else {
		fmt.Printf("Status:     valid for %s\n", time.Until(view.ExpiresAt).Round(time.Minute))
	}

	return nil
}
