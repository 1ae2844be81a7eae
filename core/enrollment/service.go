package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("Enrollment not found or access denied")
	ErrAlreadyEnrolled   = errors.New("Already enrolled in this course")
	ErrInvalidVideoIndex = errors.New("Invalid video index")
)

type (
	Repository interface {
		course.EnrollmentStore

		// CreateEnrollment fails with ErrAlreadyEnrolled if the student is already enrolled in the course,
		// and may fail with course.ErrNotFound when the store enforces references.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// GetEnrollment fails with ErrNotFound.
		GetEnrollment(ctx context.Context, filter GetFilter) (Enrollment, error)
		// QueryEnrollments returns the matching enrollments, newest first.
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		// AddProgress atomically adds videoIndex to the progress set of the enrollment matching both ids.
		// Adding an index already in the set is a no-op. Fails with ErrNotFound.
		AddProgress(ctx context.Context, id, studentID string, videoIndex int) (Enrollment, error)
		// QueryCourseIDs returns the distinct course IDs referenced by enrollments.
		QueryCourseIDs(ctx context.Context) ([]string, error)
	}

	Service interface {
		Enroll(ctx context.Context, student user.User, courseID string) (Detail, error)
		QueryByStudent(ctx context.Context, student user.User) ([]Detail, error)
		MarkVideoCompleted(ctx context.Context, id, studentID string, videoIndex int) (Summary, error)
		PurgeOrphans(ctx context.Context) (int, error)
	}

	service struct {
		repo    Repository
		courses course.Service
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courses course.Service, logger core.Logger) Service {
	return &service{
		repo:    repo,
		courses: courses,
		logger:  logger,
	}
}

// Enroll enrolls student in the course. Uniqueness of (student, course) is enforced by the store.
func (svc *service) Enroll(ctx context.Context, student user.User, courseID string) (Detail, error) {
	c, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return Detail{}, err
	}

	e := Enrollment{
		ID:         uuid.NewString(),
		StudentID:  student.ID,
		CourseID:   c.ID,
		Progress:   []int{},
		EnrolledAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	e, err = svc.repo.CreateEnrollment(ctx, e)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyEnrolled):
			return Detail{}, core.NewConflictError(ErrAlreadyEnrolled)
		case errors.Is(err, course.ErrNotFound): // deleted in between
			return Detail{}, core.NewNotFoundError(course.ErrNotFound)
		}
		return Detail{}, errors.Wrap(err, "creating enrollment")
	}
	return newDetail(e, c, Student{ID: student.ID, Name: student.Name}), nil
}

// QueryByStudent lists the student's enrollments, newest first.
// Enrollments whose course is gone are left out.
func (svc *service) QueryByStudent(ctx context.Context, student user.User) ([]Detail, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, QueryFilter{StudentID: student.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := svc.courses.QueryByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}

	stdnt := Student{ID: student.ID, Name: student.Name}
	details := make([]Detail, 0, len(enrollments))
	for _, e := range enrollments {
		c, ok := courses[e.CourseID]
		if !ok {
			continue
		}
		details = append(details, newDetail(e, c, stdnt))
	}
	return details, nil
}

// MarkVideoCompleted adds videoIndex to the progress of the student's enrollment.
// Marking the same video twice leaves the progress unchanged.
func (svc *service) MarkVideoCompleted(ctx context.Context, id, studentID string, videoIndex int) (Summary, error) {
	e, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id, StudentID: studentID})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Summary{}, core.NewNotFoundError(ErrNotFound)
		}
		return Summary{}, errors.Wrap(err, "getting enrollment")
	}

	c, err := svc.courses.Get(ctx, e.CourseID)
	if err != nil {
		var nfErr *core.NotFoundError
		if errors.As(err, &nfErr) {
			return Summary{}, core.NewNotFoundError(ErrNotFound)
		}
		return Summary{}, errors.Wrap(err, "getting enrolled course")
	}

	total := c.TotalVideos()
	if !ValidVideoIndex(videoIndex, total) {
		return Summary{}, core.NewValidationError(ErrInvalidVideoIndex)
	}
	if e.HasCompleted(videoIndex) {
		return Summarize(e.Progress, total), nil
	}

	e, err = svc.repo.AddProgress(ctx, e.ID, studentID, videoIndex)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Summary{}, core.NewNotFoundError(ErrNotFound)
		}
		return Summary{}, errors.Wrap(err, "adding progress")
	}
	return Summarize(e.Progress, total), nil
}

// PurgeOrphans deletes the enrollments whose course no longer exists and returns how many were deleted.
func (svc *service) PurgeOrphans(ctx context.Context) (int, error) {
	ids, err := svc.repo.QueryCourseIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying enrolled course IDs")
	}
	courses, err := svc.courses.QueryByID(ctx, ids...)
	if err != nil {
		return 0, errors.Wrap(err, "querying enrolled courses")
	}

	orphans := make([]string, 0)
	for _, id := range ids {
		if _, ok := courses[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	n, err := svc.repo.DeleteEnrollmentsByCourse(ctx, orphans...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting orphaned enrollments")
	}
	svc.logger.Info("purged orphaned enrollments", map[string]interface{}{"courses": len(orphans), "enrollments": n})
	return n, nil
}
