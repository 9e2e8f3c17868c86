package store

import (
	"context"
	"embed"
	"log/slog"

	"github.com/pkg/errors"
)

// The migration system is intentionally small: a fresh database gets the
// full schema from LATEST.sql; an initialized database is left alone.
// Incremental upgrade files can be added next to LATEST.sql when the schema
// first needs to change.

//go:embed migration
var migrationFS embed.FS

const latestSchemaFileName = "LATEST.sql"

// Migrate bootstraps the schema on first run.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check database initialization")
	}
	if initialized {
		return nil
	}

	buf, err := migrationFS.ReadFile("migration/" + s.profile.Driver + "/" + latestSchemaFileName)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema for driver %q", s.profile.Driver)
	}

	if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	slog.Info("database initialized", "driver", s.profile.Driver)
	return nil
}
