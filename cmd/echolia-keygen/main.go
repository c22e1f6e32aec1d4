// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/echolia/inference-gateway/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "echolia-keygen",
	Short:   "echolia-keygen - offline inspection and rotation for the gateway's KeyStore",
	Version: version.String(),
	Long: `echolia-keygen operates on the inference gateway's on-disk identity blob
directly, without a running gateway process.

This tool supports:
- Generating a fresh server identity
- Inspecting a stored identity's key ID, public key, and expiry
- Forcing rotation ahead of schedule`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
