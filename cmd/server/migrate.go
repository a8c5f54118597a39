package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"task-manager-api/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Long:      "Run the embedded schema migrations against the configured database. Defaults to up.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		s, err := store.New(context.Background(), cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer s.Close()

		if err := s.Migrate(direction); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("direction", direction))
		return nil
	},
}
