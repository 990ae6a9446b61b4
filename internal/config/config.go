package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL      string
	ServerAddr       string
	PoolMaxConns     int32
	ResolveChunkSize int
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "gameshelf")
		pass := getenv("POSTGRES_PASSWORD", "gameshelf_pass")
		db := getenv("POSTGRES_DB", "gameshelf")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	addr := getenv("SERVER_ADDR", "0.0.0.0:8080")
	maxConns := parseInt(getenv("POOL_MAX_CONNS", ""), 0)
	chunk := parseInt(getenv("RESOLVE_CHUNK_SIZE", "1000"), 1000)
	if chunk <= 0 {
		chunk = 1000
	}

	return &Config{
		DatabaseURL:      dsn,
		ServerAddr:       addr,
		PoolMaxConns:     int32(maxConns),
		ResolveChunkSize: chunk,
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
