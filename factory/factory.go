package factory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/internal"
	"go.uber.org/zap"
)

// ConnString builds a postgres URL from the database settings.
func ConnString(cfg lowcoder.DatabaseConfig, password string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.Database,
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool creates a PostgreSQL connection pool. With UseIAM the password is
// replaced by a DSQL connect token generated from the default AWS chain.
func NewPool(ctx context.Context, cfg lowcoder.DatabaseConfig) (*pgxpool.Pool, error) {
	if err := internal.ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}

	password := cfg.Password
	if cfg.UseIAM {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("generate iam auth token: %w", err)
		}
		password = token
		zap.S().Infow("generated IAM auth token for Postgres connection", "endpoint", endpoint)
	}

	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg, password))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// InitDatabase creates the schema repository tables.
func InitDatabase(ctx context.Context, pool *pgxpool.Pool, names lowcoder.TableNames) error {
	return internal.ApplySchemaDDL(ctx, pool, names)
}

// NewReader returns the spreadsheet reader for the configured extensions.
// The returned cleanup closes the embedded DuckDB engine.
func NewReader(cfg *lowcoder.Config) (internal.TabularReader, func(), error) {
	readers := map[string]internal.TabularReader{
		".xlsx": internal.NewXLSXReader(cfg.Import.DecimalSeparator),
	}
	cleanup := func() {}
	for _, ext := range cfg.Import.AllowedExtensions {
		if strings.EqualFold(ext, ".csv") {
			client, err := internal.NewDuckDBClient(cfg.DuckDB)
			if err != nil {
				return nil, nil, fmt.Errorf("init duckdb: %w", err)
			}
			readers[".csv"] = internal.NewCSVReader(client)
			cleanup = func() { _ = client.Close() }
		}
	}
	return internal.NewExtensionReader(cfg.Import.AllowedExtensions, readers), cleanup, nil
}

// NewSchemaManagerWithConfig wires a SchemaManager backed by PostgreSQL.
//
// Usage:
//
//	cfg := lowcoder.DefaultConfig()
//	pool, _ := factory.NewPool(ctx, cfg.Database)
//	sm, cleanup, err := factory.NewSchemaManagerWithConfig(ctx, cfg, pool)
//	if err != nil {
//	    // handle error
//	}
//	defer cleanup()
func NewSchemaManagerWithConfig(ctx context.Context, cfg *lowcoder.Config, pool *pgxpool.Pool) (lowcoder.SchemaManager, func(), error) {
	if pool == nil {
		return nil, nil, fmt.Errorf("database pool is required")
	}
	repo := internal.NewPostgresSchemaRepository(pool, cfg.Database.TableNames)
	return newSchemaManager(ctx, cfg, repo)
}

// NewInMemorySchemaManager wires a SchemaManager whose state lives only in
// the process. Used for dry runs and tests.
func NewInMemorySchemaManager(ctx context.Context, cfg *lowcoder.Config) (lowcoder.SchemaManager, func(), error) {
	return newSchemaManager(ctx, cfg, internal.NewMemorySchemaRepository())
}

func newSchemaManager(ctx context.Context, cfg *lowcoder.Config, repo internal.SchemaRepository) (lowcoder.SchemaManager, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	indexer := internal.NewSchemaIndexer()
	sync, err := internal.NewSchemaSynchronizer(cfg.Import, indexer)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := internal.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	reader, cleanup, err := NewReader(cfg)
	if err != nil {
		return nil, nil, err
	}
	return internal.NewSchemaService(repo, reader, sync, indexer, blobs, cfg.Import), cleanup, nil
}

// NewProjectGeneratorWithConfig wires a generator reading the schema from
// PostgreSQL.
func NewProjectGeneratorWithConfig(ctx context.Context, cfg *lowcoder.Config, pool *pgxpool.Pool) (lowcoder.ProjectGenerator, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return NewProjectGenerator(ctx, cfg, internal.NewPostgresSchemaRepository(pool, cfg.Database.TableNames))
}

// NewProjectGenerator wires a generator on top of any schema repository.
func NewProjectGenerator(ctx context.Context, cfg *lowcoder.Config, repo internal.SchemaRepository) (lowcoder.ProjectGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	blobs, err := internal.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	validator, err := internal.NewFixtureValidator()
	if err != nil {
		return nil, err
	}

	var formatter internal.SourceFormatter = internal.NopFormatter{}
	if cfg.Generation.FormatterEnabled {
		formatter = internal.NewCommandFormatter(cfg.Generation.FormatterBinary, "--quiet")
	}

	exporters := internal.ModelExporters{
		lowcoder.ModelExporterDjango: internal.NewDjangoExporter(cfg.Generation, formatter, validator),
		lowcoder.ModelExporterJPA:    internal.JPAExporter{},
	}
	expander := internal.NewCookiecutterExpander(cfg.Generation.CookiecutterBinary)
	return internal.NewGeneratorService(repo, expander, exporters, blobs, cfg.Generation), nil
}
