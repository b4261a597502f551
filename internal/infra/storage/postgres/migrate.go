package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // migration runner uses the pq driver
	"github.com/pressly/goose/v3"
)

// Migrate runs goose migrations from dir against the configured database.
// It opens a short-lived dedicated connection so migration locking never
// competes with the engine's pool.
func Migrate(cfg Config, dir string) error {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}
