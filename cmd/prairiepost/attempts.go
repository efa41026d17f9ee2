// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package main

import (
	"time"

	"github.com/spf13/cobra"

	authpg "github.com/prairiepost/prairiepost/internal/auth/postgres"
	"github.com/prairiepost/prairiepost/internal/store"
)

// NewAttemptsCmd creates the attempts subcommand: an operator view of the
// login audit ledger for a single account, newest first.
func NewAttemptsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "attempts <username>",
		Short: "Show recent login attempts for a username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseURL, err := resolveDatabaseURL()
			if err != nil {
				return err
			}

			pool, err := store.Connect(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			attempts, err := authpg.NewLoginAttemptRepository(pool).
				RecentByUsername(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				cmd.Printf("No login attempts recorded for %q\n", args[0])
				return nil
			}

			for _, attempt := range attempts {
				outcome := "FAILED"
				if attempt.Success {
					outcome = "ok"
				}
				cmd.Printf("%s  %-15s  %s\n",
					attempt.CreatedAt.Format(time.RFC3339), attempt.IPAddress, outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of attempts to show")
	return cmd
}
