package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-inbox/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DataSource is a database URL resolved to a database/sql driver and DSN.
type DataSource struct {
	Driver  string
	DSN     string
	Dialect string
	// Path is the sqlite file path; empty for in-memory and postgres.
	Path string
}

var memoryDatabaseSeq atomic.Int64

// ResolveDatabaseURL maps a DATABASE_URL onto a driver. sqlite URLs follow
// the sqlite:///<path> form, so sqlite:////data/app.db names /data/app.db.
// postgres:// and postgresql:// URLs are handed to lib/pq unchanged. Anything
// else is taken as a sqlite file path.
func ResolveDatabaseURL(raw string) (DataSource, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DataSource{}, fmt.Errorf("sqlstore: database url is required")
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DataSource{
			Driver:  DriverPostgres,
			DSN:     trimmed,
			Dialect: migrations.DialectPostgres,
		}, nil
	case strings.HasPrefix(lower, "sqlite:///"):
		return sqliteSource(trimmed[len("sqlite:///"):])
	case strings.HasPrefix(lower, "sqlite://"):
		return sqliteSource(trimmed[len("sqlite://"):])
	case strings.Contains(lower, "://"):
		return DataSource{}, fmt.Errorf("sqlstore: unsupported database url scheme in %q", trimmed)
	default:
		return sqliteSource(trimmed)
	}
}

func sqliteSource(path string) (DataSource, error) {
	if path == "" || path == ":memory:" {
		return DataSource{
			Driver: DriverSQLite,
			DSN: fmt.Sprintf(
				"file:inbox-memory-%d-%d?mode=memory&cache=shared&_foreign_keys=on",
				time.Now().UnixNano(),
				memoryDatabaseSeq.Add(1),
			),
			Dialect: migrations.DialectSQLite,
		}, nil
	}
	return DataSource{
		Driver:  DriverSQLite,
		DSN:     fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path),
		Dialect: migrations.DialectSQLite,
		Path:    path,
	}, nil
}

// PersistenceConfig satisfies the go-persistence-bun client configuration.
type PersistenceConfig struct {
	Driver      string
	Server      string
	Debug       bool
	PingTimeout time.Duration
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 2 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return "go-inbox"
}

// Open connects to the database behind databaseURL and applies the message
// schema for its dialect. The caller owns the returned client.
func Open(ctx context.Context, databaseURL string) (*persistence.Client, error) {
	source, err := ResolveDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if source.Path != "" {
		if dir := filepath.Dir(source.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlstore: create database directory %q: %w", dir, err)
			}
		}
	}

	sqlDB, err := sql.Open(source.Driver, source.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", source.Driver, err)
	}

	cfg := PersistenceConfig{Driver: source.Driver, Server: source.DSN}
	var client *persistence.Client
	switch source.Driver {
	case DriverPostgres:
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	default:
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	if err := Migrate(ctx, client, source.Dialect); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Migrate registers the embedded migrations for one dialect and runs them.
func Migrate(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	_, err := migrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect))
	if err != nil {
		return fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}
