// Package database opens the storage selected by the configuration and exposes its repositories.
package database

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/learntube/backend/assets"
	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
	inmemdb "github.com/learntube/backend/storage/database/inmem"
	mongorepos "github.com/learntube/backend/storage/database/mongodb"
	pgrepos "github.com/learntube/backend/storage/database/postgres"
)

var (
	gooseRunFunc = goose.RunContext // mockable

	errUnknownEngine = errors.New("unknown database engine")
)

type conn interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store groups the repositories of one database.
type Store struct {
	Users       user.Repository
	Courses     course.Repository
	Enrollments enrollment.Repository

	engine string
	conn   conn
	mongo  *mongorepos.DB
	pg     *pgrepos.DB
}

// Open connects to the database engine set in conf.
func Open(ctx context.Context, conf *core.Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.Database.ConnectTimeout)
	defer cancel()

	switch conf.Database.Engine {
	case core.EngineMongo:
		db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Store{
			Users:       mongorepos.NewUserRepository(db),
			Courses:     mongorepos.NewCourseRepository(db),
			Enrollments: mongorepos.NewEnrollmentRepository(db),
			engine:      core.EngineMongo,
			conn:        db,
			mongo:       db,
		}, nil
	case core.EnginePostgres:
		db, err := pgrepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Store{
			Users:       pgrepos.NewUserRepository(db),
			Courses:     pgrepos.NewCourseRepository(db),
			Enrollments: pgrepos.NewEnrollmentRepository(db),
			engine:      core.EnginePostgres,
			conn:        db,
			pg:          db,
		}, nil
	case core.EngineMemory:
		return NewMemoryStore(inmemdb.Open()), nil
	}
	return nil, errors.Wrap(errUnknownEngine, conf.Database.Engine)
}

// NewMemoryStore wraps an in-memory database.
func NewMemoryStore(db *inmemdb.DB) *Store {
	return &Store{
		Users:       inmemdb.NewUserRepository(db),
		Courses:     inmemdb.NewCourseRepository(db),
		Enrollments: inmemdb.NewEnrollmentRepository(db),
		engine:      core.EngineMemory,
		conn:        db,
	}
}

func (s *Store) Engine() string { return s.engine }

func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

func (s *Store) Close(ctx context.Context) error { return s.conn.Close(ctx) }

// Migrate brings the schema up to date.
//  - postgres: runs the goose command over the embedded SQL migrations
//  - mongodb: "up" creates the indexes
//  - memory: nothing to do
func (s *Store) Migrate(ctx context.Context, command string, args ...string) error {
	switch s.engine {
	case core.EnginePostgres:
		goose.SetBaseFS(assets.FS)
		if err := goose.SetDialect("postgres"); err != nil {
			return errors.Wrap(err, "setting goose dialect")
		}
		if err := gooseRunFunc(ctx, command, s.pg.DB.DB, assets.MigrationsDir, args...); err != nil {
			return errors.Wrap(err, "migrating database")
		}
		return nil
	case core.EngineMongo:
		if command != "up" {
			return errors.Errorf("%q: not supported on %s", command, s.engine)
		}
		return s.mongo.EnsureIndexes(ctx)
	}
	return nil
}
