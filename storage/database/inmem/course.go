package inmemdb

import (
	"context"
	"sort"

	"github.com/learntube/backend/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func copyCourse(c course.Course) course.Course {
	c.Videos = append(make([]course.Video, 0, len(c.Videos)), c.Videos...)
	return c
}

// newestFirst sorts rows by creation time, newest first.
func newestFirst(rows []*courseRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c = copyCourse(c)
	c.Instructor.Name = "" // not stored
	repo.db.seq++
	repo.db.table[c.ID] = &courseRow{row: row{seq: repo.db.seq}, Course: c}
	return copyCourse(c), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return copyCourse(r.Course), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := make([]*courseRow, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.InstructorID != "" && r.Instructor.ID != filter.InstructorID {
			continue
		}
		rows = append(rows, r)
	}
	newestFirst(rows)

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, copyCourse(r.Course))
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByID(_ context.Context, ids ...string) (map[string]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make(map[string]course.Course, len(ids))
	for _, id := range ids {
		if r, ok := repo.db.table[id]; ok {
			courses[id] = copyCourse(r.Course)
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[c.ID]
	if !ok || !r.IsOwnedBy(c.Instructor.ID) {
		return course.Course{}, course.ErrNotFound
	}
	c = copyCourse(c)
	r.Title = c.Title
	r.Description = c.Description
	r.Category = c.Category
	r.Videos = c.Videos
	r.UpdatedAt = c.UpdatedAt
	return copyCourse(r.Course), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id, instructorID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok || !r.IsOwnedBy(instructorID) {
		return course.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *courseRepository) QueryCategories(_ context.Context) ([]course.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, r := range repo.db.table {
		counts[r.Category]++
	}
	cats := make([]course.Category, 0, len(counts))
	for name, count := range counts {
		cats = append(cats, course.Category{ID: name, Name: name, Count: count})
	}
	return cats, nil
}
