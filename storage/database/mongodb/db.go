// Package mongorepos implements the repositories on top of MongoDB.
package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learntube/backend/core"
)

const (
	usersCollection       = "users"
	coursesCollection     = "courses"
	enrollmentsCollection = "enrollments"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and waits for it to be ready.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetConnectTimeout(conf.Database.ConnectTimeout).
		SetAppName(conf.AppName)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	db := &DB{client: client, db: client.Database(conf.Database.Name)}
	if err = db.ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func (db *DB) ping(ctx context.Context) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.Ping(ctx); err == nil {
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
	return db.client.Ping(ctx, nil)
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) collection(name string) *mongo.Collection {
	return db.db.Collection(name)
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
//  - users: unique email
//  - courses: category, (instructor, createdAt)
//  - enrollments: unique (student, course), course
func (db *DB) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		coursesCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "instructor", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		enrollmentsCollection: {
			{Keys: bson.D{{Key: "student", Value: 1}, {Key: "course", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "course", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", coll)
		}
	}
	return nil
}

// newestFirst sorts on a timestamp field, newest first. _id breaks ties.
func newestFirst(field string) bson.D {
	return bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}}
}

func trapNoDocsErr(err error, notFoundErr error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFoundErr
	}
	return err
}
