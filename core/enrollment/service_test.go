package enrollment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
	logsvc "github.com/learntube/backend/services/logger"
	"github.com/learntube/backend/storage/database"
	inmemdb "github.com/learntube/backend/storage/database/inmem"
	testutil "github.com/learntube/backend/tests"
)

func setup(t *testing.T) (enrollment.Service, course.Service, *database.Store) {
	t.Helper()
	logger := logsvc.NewNopLogger()
	store := database.NewMemoryStore(inmemdb.Open())
	courseSvc := course.NewService(store.Courses, store.Enrollments, store.Users, logger)
	return enrollment.NewService(store.Enrollments, courseSvc, logger), courseSvc, store
}

func TestService_Enroll(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b"})

	detail, err := svc.Enroll(ctx, bob, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, detail.ID)
	assert.Equal(t, c, detail.Course)
	assert.Equal(t, enrollment.Student{ID: bob.ID, Name: bob.Name}, detail.Student)
	assert.Equal(t, []int{}, detail.Progress)
	assert.Equal(t, enrollment.Summary{CompletedVideos: 0, TotalVideos: 2, CompletionPercentage: 0}, detail.Summary)
	assert.Equal(t, time.UTC, detail.EnrolledAt.Location())

	_, err = svc.Enroll(ctx, bob, c.ID)
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, enrollment.ErrAlreadyEnrolled)

	_, err = svc.Enroll(ctx, bob, "lol")
	var notFound *core.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, course.ErrNotFound)
}

func TestService_Enroll_concurrent(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a"})

	const n = 20
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Enroll(ctx, bob, c.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, enrollment.ErrAlreadyEnrolled)
	}
	assert.Equal(t, 1, ok)
}

func TestService_MarkVideoCompleted(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	eve := testutil.CreateUser(t, store.Users, "Eve", "eve@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b", "c"})
	e := testutil.CreateEnrollment(t, store.Enrollments, bob, c, nil)

	steps := []struct {
		idx  int
		want enrollment.Summary
	}{
		{0, enrollment.Summary{CompletedVideos: 1, TotalVideos: 3, CompletionPercentage: 33}},
		{0, enrollment.Summary{CompletedVideos: 1, TotalVideos: 3, CompletionPercentage: 33}},
		{1, enrollment.Summary{CompletedVideos: 2, TotalVideos: 3, CompletionPercentage: 67}},
		{2, enrollment.Summary{CompletedVideos: 3, TotalVideos: 3, CompletionPercentage: 100}},
	}
	for _, s := range steps {
		got, err := svc.MarkVideoCompleted(ctx, e.ID, bob.ID, s.idx)
		require.NoError(t, err)
		assert.Equal(t, s.want, got)
	}

	for _, idx := range []int{-1, 3, 42} {
		_, err := svc.MarkVideoCompleted(ctx, e.ID, bob.ID, idx)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr, "index %d", idx)
		assert.ErrorIs(t, err, enrollment.ErrInvalidVideoIndex)
	}

	_, err := svc.MarkVideoCompleted(ctx, e.ID, eve.ID, 0)
	var notFound *core.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, enrollment.ErrNotFound)

	stored, err := store.Enrollments.GetEnrollment(ctx, enrollment.GetFilter{ID: e.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, stored.Progress)
}

func TestService_MarkVideoCompleted_concurrent(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b", "c", "d", "e"})
	e := testutil.CreateEnrollment(t, store.Enrollments, bob, c, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := svc.MarkVideoCompleted(ctx, e.ID, bob.ID, idx)
			assert.NoError(t, err)
		}(i % 5)
	}
	wg.Wait()

	// no lost update, no duplicate
	stored, err := store.Enrollments.GetEnrollment(ctx, enrollment.GetFilter{ID: e.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, stored.Progress)
}

func TestService_QueryByStudent(t *testing.T) {
	svc, courseSvc, store := setup(t)
	ctx := context.Background()
	now := time.Now()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	eve := testutil.CreateUser(t, store.Users, "Eve", "eve@test.cd", "", user.RoleStudent)
	c1 := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b"})
	c2 := testutil.CreateCourse(t, store.Courses, ada, "Go", "Programming", []string{"a", "b", "c", "d"})

	e1 := testutil.CreateEnrollment(t, store.Enrollments, bob, c1, []int{1}, now.Add(1*time.Minute))
	e2 := testutil.CreateEnrollment(t, store.Enrollments, bob, c2, []int{0, 3}, now.Add(2*time.Minute))
	testutil.CreateEnrollment(t, store.Enrollments, eve, c1, nil)

	details, err := svc.QueryByStudent(ctx, bob)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, e2.ID, details[0].ID)
	assert.Equal(t, enrollment.Summary{CompletedVideos: 2, TotalVideos: 4, CompletionPercentage: 50}, details[0].Summary)
	assert.Equal(t, e1.ID, details[1].ID)
	assert.Equal(t, enrollment.Summary{CompletedVideos: 1, TotalVideos: 2, CompletionPercentage: 50}, details[1].Summary)
	assert.Equal(t, "Ada", details[1].Course.Instructor.Name)

	// cascade: deleting c2 removes its enrollments
	require.NoError(t, courseSvc.Delete(ctx, c2.ID, ada.ID))
	details, err = svc.QueryByStudent(ctx, bob)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, e1.ID, details[0].ID)

	// student without enrollments
	details, err = svc.QueryByStudent(ctx, ada)
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.NotNil(t, details)
}

func TestService_PurgeOrphans(t *testing.T) {
	svc, _, store := setup(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	kept := testutil.CreateCourse(t, store.Courses, ada, "Go", "Programming", []string{"a"})
	gone := testutil.CreateCourse(t, store.Courses, ada, "Gone", "Misc", []string{"a"})
	testutil.CreateEnrollment(t, store.Enrollments, bob, kept, nil)
	testutil.CreateEnrollment(t, store.Enrollments, bob, gone, nil)

	n, err := svc.PurgeOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Courses.DeleteCourse(ctx, gone.ID, ada.ID))
	n, err = svc.PurgeOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	details, err := svc.QueryByStudent(ctx, bob)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, kept.ID, details[0].Course.ID)
}
