package course

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("Course not found")
	ErrNotFoundOrDenied  = errors.New("Course not found or access denied")
	ErrCascadeIncomplete = errors.New("enrollments still reference the course")

	purgeMaxAttempts = 5
	purgeBackoff     = 50 * time.Millisecond // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// GetCourse fails with ErrNotFound.
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses returns the matching courses, newest first.
		QueryCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		// QueryCoursesByID returns the found courses keyed by ID. Unknown IDs are skipped.
		QueryCoursesByID(ctx context.Context, ids ...string) (map[string]Course, error)
		// UpdateCourse replaces the editable fields of the course matching both c.ID and c.Instructor.ID.
		// Fails with ErrNotFound when there is no such course.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// DeleteCourse fails with ErrNotFound when no course matches both ids.
		DeleteCourse(ctx context.Context, id, instructorID string) error
		QueryCategories(ctx context.Context) ([]Category, error)
	}

	// EnrollmentStore is the part of the enrollment storage courses depend on.
	EnrollmentStore interface {
		// CountEnrollmentsByCourse returns the number of enrollments per course ID.
		// Courses without enrollments may be missing from the result.
		CountEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (map[string]int, error)
		// DeleteEnrollmentsByCourse returns the number of deleted enrollments.
		DeleteEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, instructor user.User, nc NewCourse) (Course, error)
		Update(ctx context.Context, id string, instructor user.User, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id, instructorID string) error
		QueryByInstructor(ctx context.Context, instructorID string) ([]InstructorCourse, error)
		Query(ctx context.Context, filter QueryFilter) ([]Course, error)
		Get(ctx context.Context, id string) (Course, error)
		QueryByID(ctx context.Context, ids ...string) (map[string]Course, error)
		Categories(ctx context.Context) ([]Category, error)
	}

	service struct {
		repo        Repository
		enrollments EnrollmentStore
		users       user.Repository
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, enrollments EnrollmentStore, users user.Repository, logger core.Logger) Service {
	return &service{
		repo:        repo,
		enrollments: enrollments,
		users:       users,
		logger:      logger,
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Create publishes a new Course owned by instructor. nc must be validated beforehand.
func (svc *service) Create(ctx context.Context, instructor user.User, nc NewCourse) (Course, error) {
	tstamp := now()
	c := Course{
		ID:          uuid.NewString(),
		Title:       nc.Title,
		Description: nc.Description,
		Category:    nc.Category,
		Instructor:  Instructor{ID: instructor.ID, Name: instructor.Name},
		Videos:      nc.Videos,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	c, err := svc.repo.CreateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	c.Instructor.Name = instructor.Name
	return c, nil
}

// Update replaces title, description, category & videos wholesale.
// A missing course and a course owned by someone else are indistinguishable.
func (svc *service) Update(ctx context.Context, id string, instructor user.User, uc UpdateCourse) (Course, error) {
	c := Course{
		ID:          id,
		Title:       uc.Title,
		Description: uc.Description,
		Category:    uc.Category,
		Instructor:  Instructor{ID: instructor.ID},
		Videos:      uc.Videos,
		UpdatedAt:   now(),
	}
	c, err := svc.repo.UpdateCourse(ctx, c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Course{}, core.NewNotFoundError(ErrNotFoundOrDenied)
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	c.Instructor.Name = instructor.Name
	return c, nil
}

// Delete removes a course and every enrollment referencing it:
//  1. purge the enrollments, until none is left
//  2. delete the course
//  3. purge again, catching enrollments created in between
// A failing purge fails the whole operation even if the course itself is gone.
func (svc *service) Delete(ctx context.Context, id, instructorID string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewNotFoundError(ErrNotFoundOrDenied)
		}
		return errors.Wrap(err, "getting course")
	}
	if !c.IsOwnedBy(instructorID) {
		return core.NewNotFoundError(ErrNotFoundOrDenied)
	}

	if err = svc.purgeEnrollments(ctx, id); err != nil {
		return errors.Wrap(err, "purging enrollments before delete")
	}
	if err = svc.repo.DeleteCourse(ctx, id, instructorID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewNotFoundError(ErrNotFoundOrDenied)
		}
		return errors.Wrap(err, "deleting course")
	}
	if err = svc.purgeEnrollments(ctx, id); err != nil {
		return errors.Wrap(err, "purging enrollments after delete")
	}
	return nil
}

// purgeEnrollments deletes the course's enrollments and checks that none is left.
// Waits purgeBackoff longer between each attempt, and not at all after the last one.
func (svc *service) purgeEnrollments(ctx context.Context, id string) error {
	var err error
	for attempts := 1; attempts <= purgeMaxAttempts; attempts++ {
		if err = svc.purgeOnce(ctx, id); err == nil {
			return nil
		}
		svc.logger.Warn("purging enrollments", err, map[string]interface{}{"course": id, "attempt": attempts})
		if attempts == purgeMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), err.Error())
		case <-time.After(time.Duration(attempts) * purgeBackoff):
		}
	}
	return err
}

func (svc *service) purgeOnce(ctx context.Context, id string) error {
	if _, err := svc.enrollments.DeleteEnrollmentsByCourse(ctx, id); err != nil {
		return errors.Wrap(err, "deleting enrollments")
	}
	counts, err := svc.enrollments.CountEnrollmentsByCourse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	if counts[id] > 0 {
		return ErrCascadeIncomplete
	}
	return nil
}

// QueryByInstructor lists the instructor's courses, newest first, with their enrollment counts.
func (svc *service) QueryByInstructor(ctx context.Context, instructorID string) ([]InstructorCourse, error) {
	courses, err := svc.Query(ctx, QueryFilter{InstructorID: instructorID})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	counts := map[string]int{}
	if len(ids) > 0 {
		if counts, err = svc.enrollments.CountEnrollmentsByCourse(ctx, ids...); err != nil {
			return nil, errors.Wrap(err, "counting enrollments")
		}
	}

	result := make([]InstructorCourse, 0, len(courses))
	for _, c := range courses {
		result = append(result, InstructorCourse{Course: c, EnrollmentCount: counts[c.ID]})
	}
	return result, nil
}

// Query lists courses, newest first. The category filter is an exact match.
func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []Course{}
	}
	if err = svc.populateInstructors(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Course{}, core.NewNotFoundError(ErrNotFound)
		}
		return Course{}, errors.Wrap(err, "getting course")
	}
	list := []Course{c}
	if err = svc.populateInstructors(ctx, list); err != nil {
		return Course{}, err
	}
	return list[0], nil
}

// QueryByID returns the found courses keyed by ID, with their instructors populated.
func (svc *service) QueryByID(ctx context.Context, ids ...string) (map[string]Course, error) {
	if len(ids) == 0 {
		return map[string]Course{}, nil
	}
	courses, err := svc.repo.QueryCoursesByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses by ID")
	}
	list := make([]Course, 0, len(courses))
	for _, c := range courses {
		list = append(list, c)
	}
	if err = svc.populateInstructors(ctx, list); err != nil {
		return nil, err
	}
	for _, c := range list {
		courses[c.ID] = c
	}
	return courses, nil
}

// Categories returns every distinct category with its course count, most popular first.
func (svc *service) Categories(ctx context.Context) ([]Category, error) {
	cats, err := svc.repo.QueryCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []Category{}
	}
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Count != cats[j].Count {
			return cats[i].Count > cats[j].Count
		}
		return cats[i].Name < cats[j].Name
	})
	return cats, nil
}

// populateInstructors sets the instructor names of courses in place.
func (svc *service) populateInstructors(ctx context.Context, courses []Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.Instructor.ID)
	}
	users, err := svc.users.QueryUsersByID(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "querying instructors")
	}
	for i := range courses {
		if usr, ok := users[courses[i].Instructor.ID]; ok {
			courses[i].Instructor.Name = usr.Name
		}
	}
	return nil
}
