package inmemdb

import (
	"context"
	"sort"

	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
)

type enrollmentRepository struct {
	db      *enrollmentTable
	courses *courseTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment, courses: db.course}
}

func copyEnrollment(e enrollment.Enrollment) enrollment.Enrollment {
	e.Progress = append(make([]int, 0, len(e.Progress)), e.Progress...)
	return e
}

// CreateEnrollment checks the course reference & the (student, course) uniqueness under lock,
// like a foreign key and a unique index would.
func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.courses.table[e.CourseID]; !ok {
		return enrollment.Enrollment{}, course.ErrNotFound
	}
	for _, r := range repo.db.table {
		if r.StudentID == e.StudentID && r.CourseID == e.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	e = copyEnrollment(e)
	repo.db.seq++
	repo.db.table[e.ID] = &enrollmentRow{row: row{seq: repo.db.seq}, Enrollment: e}
	return copyEnrollment(e), nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	r, ok := repo.db.table[filter.ID]
	if !ok || (filter.StudentID != "" && r.StudentID != filter.StudentID) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return copyEnrollment(r.Enrollment), nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rows := make([]*enrollmentRow, 0)
	for _, r := range repo.db.table {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EnrolledAt.Equal(rows[j].EnrolledAt) {
			return rows[i].EnrolledAt.After(rows[j].EnrolledAt)
		}
		return rows[i].seq > rows[j].seq
	})

	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, copyEnrollment(r.Enrollment))
	}
	return enrollments, nil
}

func (repo *enrollmentRepository) AddProgress(_ context.Context, id, studentID string, videoIndex int) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[id]
	if !ok || r.StudentID != studentID {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	if !r.HasCompleted(videoIndex) {
		r.Progress = append(r.Progress, videoIndex)
	}
	return copyEnrollment(r.Enrollment), nil
}

func (repo *enrollmentRepository) QueryCourseIDs(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	set := make(map[string]struct{})
	for _, r := range repo.db.table {
		set[r.CourseID] = struct{}{}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *enrollmentRepository) CountEnrollmentsByCourse(_ context.Context, courseIDs ...string) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := toSet(courseIDs)
	counts := make(map[string]int, len(courseIDs))
	for _, r := range repo.db.table {
		if _, ok := wanted[r.CourseID]; ok {
			counts[r.CourseID]++
		}
	}
	return counts, nil
}

func (repo *enrollmentRepository) DeleteEnrollmentsByCourse(_ context.Context, courseIDs ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	wanted := toSet(courseIDs)
	var n int
	for id, r := range repo.db.table {
		if _, ok := wanted[r.CourseID]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
