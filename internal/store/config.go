package store

import "fmt"

// Config selects and configures a document store
type Config struct {
	Driver     string      `toml:"driver"`
	Dir        string      `toml:"dir"`
	SQLitePath string      `toml:"sqlite_path"`
	Redis      RedisConfig `toml:"redis"`
	Blob       BlobConfig  `toml:"blob"`
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// BlobConfig holds Azure Blob Storage connection parameters
type BlobConfig struct {
	ConnectionString string `toml:"connection_string"`
	Container        string `toml:"container"`
}

// Defaults fills unset fields
func (c *Config) Defaults() {
	if c.Driver == "" {
		c.Driver = DriverFile
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "compete-docs.db"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "compete-docs:"
	}
	if c.Blob.Container == "" {
		c.Blob.Container = "compete-docs"
	}
}

// Validate checks that the selected driver has what it needs
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverFile:
		if c.Dir == "" {
			return fmt.Errorf("store dir required for file driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path required for sqlite driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr required for redis driver")
		}
	case DriverBlob:
		if c.Blob.ConnectionString == "" {
			return fmt.Errorf("blob connection_string required for blob driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	return nil
}
