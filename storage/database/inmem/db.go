// Package inmemdb is a memory backed storage. It enforces the same uniqueness rules as the real databases.
package inmemdb

import (
	"context"
	"sync"

	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
)

type (
	DB struct {
		user       *userTable
		course     *courseTable
		enrollment *enrollmentTable
	}

	row struct {
		seq int // insertion order, breaks timestamp ties
	}

	userTable struct {
		sync.RWMutex
		seq   int
		table map[string]*userRow
	}
	userRow struct {
		row
		user.User
	}

	courseTable struct {
		sync.RWMutex
		seq   int
		table map[string]*courseRow
	}
	courseRow struct {
		row
		course.Course
	}

	enrollmentTable struct {
		sync.RWMutex
		seq   int
		table map[string]*enrollmentRow
	}
	enrollmentRow struct {
		row
		enrollment.Enrollment
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*userRow)},
		course:     &courseTable{table: make(map[string]*courseRow)},
		enrollment: &enrollmentTable{table: make(map[string]*enrollmentRow)},
	}
}

func (db *DB) Ping(context.Context) error { return nil }

func (db *DB) Close(context.Context) error { return nil }

// Reset empties all tables.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*userRow)
	db.user.Unlock()

	db.course.Lock()
	db.course.table = make(map[string]*courseRow)
	db.course.Unlock()

	db.enrollment.Lock()
	db.enrollment.table = make(map[string]*enrollmentRow)
	db.enrollment.Unlock()
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
