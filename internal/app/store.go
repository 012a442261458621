package app

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/corey/doclink/internal/adapters/bbolt"
	"github.com/corey/doclink/internal/adapters/memory"
	"github.com/corey/doclink/internal/adapters/sqlite"
	"github.com/corey/doclink/internal/config"
	"github.com/corey/doclink/internal/ports"
)

// Store is a persistence adapter that can also provision its collections.
type Store interface {
	ports.Persistence
	ports.Provisioner
}

// OpenStore opens the persistence adapter for driver. Collections are
// provisioned on open. path is ignored by the memory driver.
func OpenStore(driver, path string) (Store, error) {
	if driver != config.DriverMemory {
		if path == "" {
			return nil, errors.Newf("storage driver %s needs a path", driver)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "create %s", filepath.Dir(path))
		}
	}

	switch driver {
	case config.DriverBBolt:
		s, err := bbolt.NewStore(path)
		if err != nil {
			return nil, errors.Wrap(err, "open store")
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.NewStore(path)
		if err != nil {
			return nil, errors.Wrap(err, "open store")
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unknown storage driver %q", driver),
			"use bbolt, sqlite or memory")
	}
}
