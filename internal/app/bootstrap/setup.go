package bootstrap

import (
	"errors"
	"fmt"

	"proxyfinder/internal/config"
	"proxyfinder/internal/database"
	"proxyfinder/internal/geolite"
	"proxyfinder/internal/support"

	"github.com/charmbracelet/log"
)

// Resources are the long-lived handles one invocation works with.
type Resources struct {
	Store   *database.ProxyStore
	GeoLite *geolite.Reader
}

// Setup loads settings from dataDir, opens and migrates the database and, when configured,
// the GeoLite database.
func Setup(dataDir string, opts ...database.Option) (*Resources, error) {
	if err := support.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("bootstrap: create data directory: %w", err)
	}

	if err := config.ReadSettings(dataDir); err != nil {
		return nil, err
	}

	db, err := database.SetupDB(opts...)
	if err != nil {
		return nil, err
	}

	res := &Resources{Store: database.NewProxyStore(db)}

	if path := support.GetEnv("GEOLITE_DB_PATH", config.GetConfig().GeoLite.DatabasePath); path != "" {
		reader, err := geolite.Open(path)
		if err != nil {
			log.Warn("GeoLite database unavailable, locations come from probe endpoints only", "error", err)
		} else {
			res.GeoLite = reader
		}
	}

	return res, nil
}

func (r *Resources) Close() error {
	var errs []error
	if r.GeoLite != nil {
		errs = append(errs, r.GeoLite.Close())
	}
	errs = append(errs, database.Close(), support.CloseRedisClient())
	return errors.Join(errs...)
}
