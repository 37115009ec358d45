package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/lib/pq"
	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/internal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	S3AccessKey = "minio"
	S3SecretKey = "minio"
)

// TestHarness holds lightweight runners for dependencies used by E2E tests.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	PGDB        *sql.DB
	S3Container testcontainers.Container
	S3Endpoint  string
	Duck        *internal.DuckDBClient
}

const (
	pgUser     = "postgres"
	pgPassword = "password"
	pgDatabase = "lowcoder"
)

// service describes one dependency container.
type service struct {
	image string
	port  string
	env   map[string]string
}

var (
	postgresService = service{
		image: "postgres:16",
		port:  "5432",
		env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
	}
	s3Service = service{
		image: "rustfs/rustfs:latest",
		port:  "9000",
		env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3AccessKey,
			"RUSTFS_SECRET_KEY": S3SecretKey,
		},
	}
)

// run starts the container and returns it with its mapped host:port.
func (svc service) run(ctx context.Context) (testcontainers.Container, string, error) {
	port := svc.port + "/tcp"
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        svc.image,
			ExposedPorts: []string{port},
			Env:          svc.env,
			WaitingFor:   wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start %s: %w", svc.image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return container, "", err
	}
	mapped, err := container.MappedPort(ctx, nat.Port(svc.port))
	if err != nil {
		return container, "", err
	}
	return container, net.JoinHostPort(host, mapped.Port()), nil
}

func terminate(ctx context.Context, c *testcontainers.Container) error {
	if *c == nil {
		return nil
	}
	if err := (*c).Terminate(ctx); err != nil {
		return err
	}
	*c = nil
	return nil
}

// waitForPing retries until the server accepts connections or the deadline passes.
// The port opens before Postgres is ready.
func waitForPing(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StartPostgres starts Postgres and returns a DSN once it answers pings.
// Call StopPostgres when done.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	container, hostPort, err := postgresService.run(ctx)
	h.PGContainer = container
	if err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, hostPort, pgDatabase)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	if err := waitForPing(ctx, db, 20*time.Second); err != nil {
		db.Close()
		return "", err
	}
	h.PGDSN = dsn
	h.PGDB = db
	return dsn, nil
}

// StopPostgres closes the DB handle and terminates the container.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	return terminate(ctx, &h.PGContainer)
}

// StartS3 starts RustFS and returns its http endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	container, hostPort, err := s3Service.run(ctx)
	h.S3Container = container
	if err != nil {
		return "", err
	}
	h.S3Endpoint = "http://" + hostPort
	return h.S3Endpoint, nil
}

func (h *TestHarness) StopS3(ctx context.Context) error {
	return terminate(ctx, &h.S3Container)
}

// StartDuckDB opens the DuckDB client used to write CSV fixtures.
func (h *TestHarness) StartDuckDB(cfg lowcoder.DuckDBConfig) error {
	c, err := internal.NewDuckDBClient(cfg)
	if err != nil {
		return err
	}
	h.Duck = c
	return nil
}

// StopDuckDB closes the duckdb client.
func (h *TestHarness) StopDuckDB() error {
	if h.Duck != nil {
		if err := h.Duck.Close(); err != nil {
			return err
		}
		h.Duck = nil
	}
	return nil
}

// Config returns a configuration pointing at the started containers.
func (h *TestHarness) Config(bucket string) *lowcoder.Config {
	cfg := lowcoder.DefaultConfig()
	cfg.Database.Database = pgDatabase
	cfg.Database.Username = pgUser
	cfg.Database.Password = pgPassword
	cfg.Storage = lowcoder.StorageConfig{
		Backend:      lowcoder.StorageBackendS3,
		S3Bucket:     bucket,
		S3Region:     "us-east-1",
		S3Endpoint:   h.S3Endpoint,
		S3AccessKey:  S3AccessKey,
		S3SecretKey:  S3SecretKey,
		S3Prefix:     "uploads",
		UsePathStyle: true,
	}
	cfg.Generation.FormatterEnabled = false
	return cfg
}
