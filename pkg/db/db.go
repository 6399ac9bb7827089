// Package db opens the marketplace index database and runs its migrations.
// SQLite is the default driver; MySQL is supported for shared deployments.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config selects and configures the database.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("SKILLSMARKET_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "skillsmarket.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillsmarket", "skillsmarket.db"), nil
}

// Open connects to the configured database. An empty driver means SQLite
// and an empty SQLite DSN means DefaultDBPath.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		dbPath := cfg.DSN
		if dbPath == "" {
			var err error
			if dbPath, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		return OpenSQLite(ctx, dbPath)
	case DriverMySQL:
		return OpenMySQL(ctx, cfg)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open(DriverSQLite, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return db, nil
}

// OpenMySQL connects to MySQL. parseTime is always enabled so DATETIME
// columns scan into time.Time.
func OpenMySQL(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := NormalizeMySQLDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// NormalizeMySQLDSN parses dsn and enables the options the index relies on.
func NormalizeMySQLDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("mysql driver requires a DSN")
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql DSN")
	}
	parsed.ParseTime = true
	if parsed.Loc == nil {
		parsed.Loc = time.UTC
	}
	return parsed.FormatDSN(), nil
}

// Configure sets up SQLite pragmas for WAL mode.
func Configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}

	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}

	return nil
}

// RunMigrations opens the database and applies every pending migration.
func RunMigrations(ctx context.Context, cfg Config, migrations []Migration) error {
	sqlDB, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return NewMigrationRunner(sqlDB).Run(ctx, migrations)
}

// VerifyConfiguration checks that a SQLite database runs in WAL mode with
// foreign keys enforced.
func VerifyConfiguration(db *sqlx.DB) error {
	var journalMode string
	if err := db.Get(&journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("expected WAL mode, got %s", journalMode)
	}

	var foreignKeys string
	if err := db.Get(&foreignKeys, "PRAGMA foreign_keys"); err != nil {
		return errors.Wrap(err, "failed to query foreign keys")
	}
	if foreignKeys != "1" {
		return errors.Errorf("expected foreign keys ON, got %s", foreignKeys)
	}

	return nil
}
