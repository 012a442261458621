package config

import (
	"github.com/cockroachdb/errors"

	"github.com/corey/doclink/internal/logger"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverBBolt, DriverSQLite, DriverMemory:
	default:
		return errors.WithHint(
			errors.Newf("storage.driver %q is not supported", c.Storage.Driver),
			"use bbolt, sqlite or memory")
	}

	// Port 0 derives one from the project root.
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.Newf("http.port must be between 0 and 65535, got %d", c.HTTP.Port)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}

	// Rate 0 = unlimited, negative = invalid
	if c.Send.Rate < 0 {
		return errors.Newf("send.rate must be >= 0, got %f", c.Send.Rate)
	}
	if c.Send.BatchSize <= 0 {
		return errors.Newf("send.batch_size must be > 0, got %d", c.Send.BatchSize)
	}
	return nil
}
