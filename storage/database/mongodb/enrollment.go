package mongorepos

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learntube/backend/core/enrollment"
)

type (
	enrollmentDoc struct {
		ID         string    `bson:"_id"`
		Student    string    `bson:"student"`
		Course     string    `bson:"course"`
		Progress   []int     `bson:"progress"`
		EnrolledAt time.Time `bson:"enrolledAt"`
	}

	enrollmentCountDoc struct {
		Course string `bson:"_id"`
		Count  int    `bson:"count"`
	}
)

type enrollmentRepository struct {
	coll *mongo.Collection
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{coll: db.collection(enrollmentsCollection)}
}

func (repo enrollmentRepository) toDoc(e enrollment.Enrollment) enrollmentDoc {
	progress := e.Progress
	if progress == nil {
		progress = []int{}
	}
	return enrollmentDoc{
		ID:         e.ID,
		Student:    e.StudentID,
		Course:     e.CourseID,
		Progress:   progress,
		EnrolledAt: e.EnrolledAt.UTC(),
	}
}

func (repo enrollmentRepository) fromDoc(doc enrollmentDoc) enrollment.Enrollment {
	progress := doc.Progress
	if progress == nil {
		progress = []int{}
	}
	return enrollment.Enrollment{
		ID:         doc.ID,
		StudentID:  doc.Student,
		CourseID:   doc.Course,
		Progress:   progress,
		EnrolledAt: doc.EnrolledAt.UTC(),
	}
}

// CreateEnrollment relies on the unique (student, course) index. Course references are not checked.
func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	doc := repo.toDoc(e)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.fromDoc(doc), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	query := bson.M{"_id": filter.ID}
	if filter.StudentID != "" {
		query["student"] = filter.StudentID
	}
	var doc enrollmentDoc
	if err := repo.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		return enrollment.Enrollment{}, trapNoDocsErr(err, enrollment.ErrNotFound)
	}
	return repo.fromDoc(doc), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	query := bson.M{}
	if filter.StudentID != "" {
		query["student"] = filter.StudentID
	}
	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(newestFirst("enrolledAt")))
	if err != nil {
		return nil, errors.Wrap(err, "finding enrollments")
	}
	var docs []enrollmentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding enrollments")
	}

	enrollments := make([]enrollment.Enrollment, 0, len(docs))
	for _, doc := range docs {
		enrollments = append(enrollments, repo.fromDoc(doc))
	}
	return enrollments, nil
}

// AddProgress uses $addToSet so that concurrent & repeated calls never duplicate an index.
func (repo *enrollmentRepository) AddProgress(ctx context.Context, id, studentID string, videoIndex int) (enrollment.Enrollment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc enrollmentDoc
	err := repo.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "student": studentID},
		bson.M{"$addToSet": bson.M{"progress": videoIndex}},
		opts,
	).Decode(&doc)
	if err != nil {
		return enrollment.Enrollment{}, trapNoDocsErr(err, enrollment.ErrNotFound)
	}
	return repo.fromDoc(doc), nil
}

func (repo *enrollmentRepository) QueryCourseIDs(ctx context.Context) ([]string, error) {
	values, err := repo.coll.Distinct(ctx, "course", bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, "querying distinct courses")
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *enrollmentRepository) CountEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "course", Value: bson.D{{Key: "$in", Value: courseIDs}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$course"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating enrollment counts")
	}
	var docs []enrollmentCountDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding enrollment counts")
	}

	counts := make(map[string]int, len(docs))
	for _, doc := range docs {
		counts[doc.Course] = doc.Count
	}
	return counts, nil
}

func (repo *enrollmentRepository) DeleteEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (int, error) {
	res, err := repo.coll.DeleteMany(ctx, bson.M{"course": bson.M{"$in": courseIDs}})
	if err != nil {
		return 0, errors.Wrap(err, "deleting enrollments")
	}
	return int(res.DeletedCount), nil
}
