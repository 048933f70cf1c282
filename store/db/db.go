package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/store"
	"github.com/hrygo/itemsearch/store/db/postgres"
	"github.com/hrygo/itemsearch/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(instanceProfile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch instanceProfile.Driver {
	case profile.DriverPostgres:
		driver, err = postgres.NewDB(instanceProfile)
	case profile.DriverSQLite:
		driver, err = sqlite.NewDB(instanceProfile)
	default:
		return nil, errors.Errorf("unknown db driver %q", instanceProfile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
