// Package store is the relational index of the marketplace: skills, agents,
// rules, clients, projects and project-skill associations. The file store
// remains the system of record for bundle contents; rows here only point at
// committed storage paths.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/logger"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("record already exists")

// Store runs queries against the index database.
type Store struct {
	queries
	db *sqlx.DB
}

// Tx runs queries inside one transaction.
type Tx struct {
	queries
}

type queries struct {
	q   sqlx.ExtContext
	now func() time.Time
}

// New wraps an open database. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, queries: queries{q: db, now: defaultNow}}
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise. fn must only use tx; the SQLite pool holds a single
// connection.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	tx := &Tx{queries: queries{q: sqlTx, now: s.now}}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.G(ctx).WithError(rbErr).Warn("failed to roll back transaction")
		}
		return err
	}

	return errors.Wrap(sqlTx.Commit(), "failed to commit transaction")
}

func newID() string {
	return uuid.NewString()
}

func (q queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (q queries) selectInto(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.q, dest, query, args...)
}

func (q queries) insert(ctx context.Context, what, query string, arg interface{}) error {
	if _, err := sqlx.NamedExecContext(ctx, q.q, query, arg); err != nil {
		if IsUniqueViolation(err) {
			return errors.Wrapf(ErrConflict, "%s", what)
		}
		return errors.Wrapf(err, "failed to insert %s", what)
	}
	return nil
}

func (q queries) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a unique or primary key
// constraint in either supported driver.
func IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
