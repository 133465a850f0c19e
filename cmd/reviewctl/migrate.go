package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the review tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := postgres.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("review_jobs and review_bases are up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
