package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learntube/backend/core/course"
)

type (
	videoDoc struct {
		Title     string `bson:"title"`
		YoutubeID string `bson:"youtubeId"`
	}

	courseDoc struct {
		ID          string     `bson:"_id"`
		Title       string     `bson:"title"`
		Description string     `bson:"description"`
		Category    string     `bson:"category"`
		Instructor  string     `bson:"instructor"`
		Videos      []videoDoc `bson:"videos"`
		CreatedAt   time.Time  `bson:"createdAt"`
		UpdatedAt   time.Time  `bson:"updatedAt"`
	}

	categoryDoc struct {
		Name  string `bson:"_id"`
		Count int    `bson:"count"`
	}
)

type courseRepository struct {
	coll *mongo.Collection
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{coll: db.collection(coursesCollection)}
}

func (repo courseRepository) toVideoDocs(videos []course.Video) []videoDoc {
	docs := make([]videoDoc, 0, len(videos))
	for _, v := range videos {
		docs = append(docs, videoDoc{Title: v.Title, YoutubeID: v.YoutubeID})
	}
	return docs
}

func (repo courseRepository) toDoc(c course.Course) courseDoc {
	return courseDoc{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Instructor:  c.Instructor.ID,
		Videos:      repo.toVideoDocs(c.Videos),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromDoc(doc courseDoc) course.Course {
	videos := make([]course.Video, 0, len(doc.Videos))
	for _, v := range doc.Videos {
		videos = append(videos, course.Video{Title: v.Title, YoutubeID: v.YoutubeID})
	}
	return course.Course{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Category:    doc.Category,
		Instructor:  course.Instructor{ID: doc.Instructor},
		Videos:      videos,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) find(ctx context.Context, query interface{}, opts ...*options.FindOptions) ([]course.Course, error) {
	cur, err := repo.coll.Find(ctx, query, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "finding courses")
	}
	var docs []courseDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding courses")
	}
	courses := make([]course.Course, 0, len(docs))
	for _, doc := range docs {
		courses = append(courses, repo.fromDoc(doc))
	}
	return courses, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	doc := repo.toDoc(c)
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.fromDoc(doc), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var doc courseDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return course.Course{}, trapNoDocsErr(err, course.ErrNotFound)
	}
	return repo.fromDoc(doc), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.InstructorID != "" {
		query["instructor"] = filter.InstructorID
	}
	return repo.find(ctx, query, options.Find().SetSort(newestFirst("createdAt")))
}

func (repo *courseRepository) QueryCoursesByID(ctx context.Context, ids ...string) (map[string]course.Course, error) {
	list, err := repo.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	courses := make(map[string]course.Course, len(list))
	for _, c := range list {
		courses[c.ID] = c
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	update := bson.M{"$set": bson.M{
		"title":       c.Title,
		"description": c.Description,
		"category":    c.Category,
		"videos":      repo.toVideoDocs(c.Videos),
		"updatedAt":   c.UpdatedAt.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc courseDoc
	err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": c.ID, "instructor": c.Instructor.ID}, update, opts).Decode(&doc)
	if err != nil {
		return course.Course{}, trapNoDocsErr(err, course.ErrNotFound)
	}
	return repo.fromDoc(doc), nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id, instructorID string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id, "instructor": instructorID})
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if res.DeletedCount == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) QueryCategories(ctx context.Context) ([]course.Category, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating categories")
	}
	var docs []categoryDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding categories")
	}

	cats := make([]course.Category, 0, len(docs))
	for _, doc := range docs {
		cats = append(cats, course.Category{ID: doc.Name, Name: doc.Name, Count: doc.Count})
	}
	return cats, nil
}
