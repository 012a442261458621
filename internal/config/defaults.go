package config

import "github.com/spf13/viper"

// Storage drivers.
const (
	DriverBBolt  = "bbolt"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverBBolt)
	v.SetDefault("storage.path", "") // derived from project root

	v.SetDefault("spool.enabled", true)
	v.SetDefault("spool.dir", "") // .doclink/spool

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", 0) // 19000 + hash(root) % 1000

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("samples.file", "")

	v.SetDefault("send.rate", 0.0)
	v.SetDefault("send.batch_size", 10)
}
