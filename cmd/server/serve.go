package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"task-manager-api/internal/server"
	"task-manager-api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  "Apply pending migrations, seed the admin user when the database is empty and serve the API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer s.Close()
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	if err := s.Migrate("up"); err != nil {
		return err
	}
	if err := s.SeedAdmin(ctx, cfg.Auth.SeedAdminPassword, logger); err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg, s, logger, server.Options{})
	if err != nil {
		return err
	}
	defer srv.Close() //nolint:errcheck

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("starting server", zap.String("addr", addr), zap.String("prefix", cfg.Server.Prefix))
		errCh <- srv.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.App.ShutdownWithContext(shutdownCtx)
}
