// Package seed bootstraps the first admin account.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Admin creates an admin with the given credentials if no admins exist.
// Idempotent: does nothing once any admin row is present.
func Admin(ctx context.Context, logger *slog.Logger, db *sql.DB, email, password string) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	email = strings.TrimSpace(strings.ToLower(email))
	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (email, password_hash) VALUES (?, ?)
	`, email, string(hash))
	if err != nil {
		return fmt.Errorf("inserting admin: %w", err)
	}

	logger.Info("admin account created", "email", email)
	return nil
}
