package main

import (
	"context"

	"github.com/jmoiron/sqlx"

	"broadcast-room/internal/config"
	"broadcast-room/internal/db"
)

// connectArchive opens the history database when one is configured.
func connectArchive(cfg *config.Config) (*sqlx.DB, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}
	return db.Connect(context.Background(), cfg.DatabaseDSN)
}
