package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions and reset tokens once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		sessions, tokens := sweep(ctx, newServices(cfg, db))
		fmt.Printf("sessions_removed: %d\n", sessions)
		fmt.Printf("reset_tokens_removed: %d\n", tokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
