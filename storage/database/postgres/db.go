// Package pgrepos implements the repositories on top of PostgreSQL.
package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type DB struct {
	*sqlx.DB
}

// Open connects to PostgreSQL and waits for it to be ready.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	db, err := sqlx.Open("postgres", conf.Database.URI)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	pdb := &DB{DB: db}
	if err = pdb.ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return pdb, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func (db *DB) ping(ctx context.Context) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close(context.Context) error {
	return db.DB.Close()
}

// pqError returns the postgres error code & constraint of err, if any.
func pqError(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func trapNoRowsErr(err error, notFoundErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	return err
}
