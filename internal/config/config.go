// Package config loads connection settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/PseudoDevs/IamJohnDevORM/internal/store"
)

// Environment variable names.
const (
	EnvDriver       = "IJDORM_DRIVER"
	EnvDSN          = "IJDORM_DSN"
	EnvMaxOpenConns = "IJDORM_MAX_OPEN_CONNS"
)

// DefaultEnvFile is read when Load is given an empty path.
const DefaultEnvFile = ".env"

// Config holds the store connection settings.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Load reads envFile into the process environment and builds a Config.
//
// Precedence:
//  1. Variables already set in the environment
//  2. Values from envFile (a missing default file is not an error)
//  3. Defaults: driver sqlite3, no DSN, unlimited connections
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	maxOpen, err := getEnvAsInt(EnvMaxOpenConns, 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Driver:       getEnvOrDefault(EnvDriver, store.DriverSQLite),
		DSN:          os.Getenv(EnvDSN),
		MaxOpenConns: maxOpen,
	}, nil
}

// StoreConfig converts c to the store's connection config.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver:       c.Driver,
		DSN:          c.DSN,
		MaxOpenConns: c.MaxOpenConns,
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}
