package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/repository/postgres"
	"github.com/pratik-mahalle/infrasec/internal/repository/sqlite"
	"github.com/pratik-mahalle/infrasec/migrations"
)

// OpenDB opens a connection to the configured database backend. The driver
// is resolved exactly once here; an unknown driver is a hard error.
func OpenDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}

		// WAL for concurrent readers, busy_timeout so the single writer
		// waits instead of failing, foreign_keys for cascading deletes.
		pragmas := []string{
			"PRAGMA journal_mode=WAL;",
			"PRAGMA busy_timeout=5000;",
			"PRAGMA foreign_keys=ON;",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}

		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)

	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
		)

		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewStore opens the configured backend, applies pending migrations, and
// returns the rule store for it.
func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (rule.Store, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	fsys, err := migrations.For(cfg.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db, fsys); err != nil {
		db.Close()
		return nil, err
	}

	switch cfg.Driver {
	case "sqlite":
		return sqlite.NewRuleStore(db, log), nil
	case "postgres":
		return postgres.NewRuleStore(db, log), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
}

// Backup writes a consistent snapshot of the store's database to dest.
// Only stores that implement their own backup (SQLite) support this.
func Backup(store rule.Store, dest string) error {
	b, ok := store.(interface{ Backup(dest string) error })
	if !ok {
		return fmt.Errorf("backup is not supported by this store")
	}
	return b.Backup(dest)
}
