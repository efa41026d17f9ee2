// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Prairie Post CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prairiepost",
		Short: "Prairie Post - community server",
		Long: `Prairie Post is a small community server: account registration and
session login, plus a single realtime chat channel for members.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAttemptsCmd())

	return cmd
}
