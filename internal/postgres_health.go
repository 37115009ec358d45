package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/lychee-technology/lowcoder"
)

// ValidatePostgresConfig performs basic sanity checks on Postgres-related settings.
func ValidatePostgresConfig(cfg lowcoder.DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("database.port must be a valid TCP port")
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("database.maxConnections must be greater than 0")
	}
	if cfg.UseIAM && cfg.Region == "" {
		return fmt.Errorf("database.region is required when useIAM is set")
	}
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PostgresHealthCheck pings the pool and checks that the schema tables exist.
// timeout may be 0 to use the default of 5s.
func PostgresHealthCheck(ctx context.Context, pool schemaQuerier, names lowcoder.TableNames, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p, ok := pool.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}

	for _, table := range []string{names.Schemas, names.Tables, names.Fields, names.Documents} {
		var found *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&found); err != nil {
			return fmt.Errorf("postgres lookup of %s failed: %w", table, err)
		}
		if found == nil {
			return fmt.Errorf("required table %s is missing, run init-db first", table)
		}
	}
	return nil
}
