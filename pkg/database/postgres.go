package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablekit/partgen/pkg/config"
)

// PostgreSQL is an open connection pool to one database.
type PostgreSQL struct {
	pool *pgxpool.Pool
}

type PostgreSQLConfig struct {
	User              string
	Password          string
	Host              string
	Port              int
	Database          string
	SSLMode           string
	MaxConnections    int32
	ConnectionTimeout time.Duration
}

// New connects a pool with the given settings and verifies it with a
// ping. Connection fields are assigned directly so passwords never pass
// through URL parsing.
func New(ctx context.Context, cfg PostgreSQLConfig) (*PostgreSQL, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("database user is required")
	}

	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("failed to create connection config: %w", err)
	}
	poolConfig.ConnConfig.Host = cfg.Host
	poolConfig.ConnConfig.Port = uint16(cfg.Port)
	poolConfig.ConnConfig.Database = cfg.Database
	poolConfig.ConnConfig.User = cfg.User
	poolConfig.ConnConfig.Password = cfg.Password
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout
	if cfg.SSLMode == "disable" {
		poolConfig.ConnConfig.TLSConfig = nil
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnIdleTime = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgreSQL{pool: pool}, nil
}

// FromConfig builds a PostgreSQL config from the tool configuration.
// When no password is configured, the stored keyring credential for the
// configured user is tried.
func FromConfig(cfg *config.Config) PostgreSQLConfig {
	port, err := strconv.Atoi(cfg.GetWithDefault("database.port", "5432"))
	if err != nil {
		port = 5432
	}

	password := cfg.Get("database.password")
	if password == "" {
		if stored, err := GetStoredPassword(cfg.Get("database.user")); err == nil {
			password = stored
		}
	}

	return PostgreSQLConfig{
		User:              cfg.GetWithDefault("database.user", "postgres"),
		Password:          password,
		Host:              cfg.GetWithDefault("database.host", "localhost"),
		Port:              port,
		Database:          cfg.GetWithDefault("database.dbname", "postgres"),
		SSLMode:           cfg.GetWithDefault("database.sslmode", "prefer"),
		MaxConnections:    10,
		ConnectionTimeout: 5 * time.Second,
	}
}

// Pool exposes the underlying pgx pool for the live collaborators.
func (db *PostgreSQL) Pool() *pgxpool.Pool {
	return db.pool
}

// Close shuts the pool down.
func (db *PostgreSQL) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
