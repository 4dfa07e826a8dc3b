// Package sqlstore persists batches and the ledger in PostgreSQL or MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"hosiery/backend/internal/store"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Store struct {
	db      *sqlx.DB
	dialect dialect
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	db, d, err := connect(opts)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	return &Store{db: db, dialect: d}, nil
}

func connect(opts Options) (*sqlx.DB, dialect, error) {
	switch opts.Driver {
	case DriverPostgres, "":
		db, err := sqlx.Open("pgx", opts.DSN)
		if err != nil {
			return nil, dialect{}, err
		}
		return db, postgresDialect, nil
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(opts.DSN)
		if err != nil {
			return nil, dialect{}, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		// report matched rows, not changed rows
		cfg.ClientFoundRows = true
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, dialect{}, err
		}
		return sqlx.NewDb(sql.OpenDB(connector), "mysql"), mysqlDialect, nil
	default:
		return nil, dialect{}, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables and indexes when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if s.dialect.ignorableDDL(err) {
				continue
			}
			return store.NewStorageError("migrate", err)
		}
	}
	return nil
}

// wrap maps driver errors onto the store taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return store.NewStorageError(op, fmt.Errorf("concurrent update conflict: %w", err))
	}
	return store.AsStorage(op, err)
}

// isConflict reports serialization failures and deadlocks. They are not
// retried here; the caller sees a storage error and may resubmit.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "42P07"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 || myErr.Number == 1061
	}
	return false
}
