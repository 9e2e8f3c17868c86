package db

import (
	"github.com/pkg/errors"

	"github.com/codedrill/codedrill/internal/profile"
	"github.com/codedrill/codedrill/store"
	"github.com/codedrill/codedrill/store/db/postgres"
	"github.com/codedrill/codedrill/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the default for personal single-node use; PostgreSQL is for
// deployments that need concurrent writers.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
