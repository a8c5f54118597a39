package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const AdminEmail = "admin@localhost"

// SeedAdmin creates a verified administrator when the users table is empty.
func (s *Store) SeedAdmin(ctx context.Context, password string, logger *zap.Logger) error {
	count, err := Count(ctx, s.DB, s.Builder().Select("COUNT(*)").From("users"))
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	now := time.Now().UTC()
	_, err = Run(ctx, s.DB, s.Builder().Insert("users").
		Columns("name", "email", "password", "email_verified_at", "admin", "created_at", "updated_at").
		Values("Administrator", AdminEmail, string(hash), now, true, now, now))
	if err != nil {
		return fmt.Errorf("seed admin user: %w", MapError(s.Dialect, err))
	}

	logger.Warn("default admin user created, change the password immediately",
		zap.String("email", AdminEmail))
	return nil
}
