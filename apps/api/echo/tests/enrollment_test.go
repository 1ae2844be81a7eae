package tests

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
	testutil "github.com/learntube/backend/tests"
)

var errMustBeStudent = httpErr{Message: "Access denied. Must be student"}

func newDetail(e enrollment.Enrollment, c course.Course, student user.User) enrollment.Detail {
	return enrollment.Detail{
		ID:         e.ID,
		Course:     c,
		Student:    enrollment.Student{ID: student.ID, Name: student.Name},
		Progress:   e.Progress,
		Summary:    enrollment.Summarize(e.Progress, c.TotalVideos()),
		EnrolledAt: e.EnrolledAt,
	}
}

func Test_enrollmentAPI_enroll(t *testing.T) {
	resetDB()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b", "c"})
	token := getToken(t, bob)

	path := "/api/enrollments"
	body := func(courseID string) []byte {
		return marshalObj(t, map[string]string{"courseId": courseID})
	}

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: path, body: body(c.ID), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAuthRequired)},
		{
			name: "student required", method: http.MethodPost, path: path, body: body(c.ID), token: getToken(t, ada),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errMustBeStudent),
		},
		{
			name: "missing courseId", method: http.MethodPost, path: path, body: []byte("{}"), token: token, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Message: "Validation failed", Errors: map[string]string{"courseId": "this field is required"}}),
		},
		{
			name: "unknown course", method: http.MethodPost, path: path, body: body("lol"), token: token,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Course not found"}),
		},
	}
	runHTTPTests(t, tests)

	t.Run("success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, token, body(c.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Message    string            `json:"message"`
			Enrollment enrollment.Detail `json:"enrollment"`
		}
		unmarshalBody(t, rec, &resp)
		assert.Equal(t, "Successfully enrolled in course", resp.Message)
		assert.NotEmpty(t, resp.Enrollment.ID)
		assert.Equal(t, c.ID, resp.Enrollment.Course.ID)
		assert.Equal(t, c.Instructor, resp.Enrollment.Course.Instructor)
		assert.Equal(t, enrollment.Student{ID: bob.ID, Name: bob.Name}, resp.Enrollment.Student)
		assert.Equal(t, []int{}, resp.Enrollment.Progress)
		assert.Equal(t, enrollment.Summary{CompletedVideos: 0, TotalVideos: 3, CompletionPercentage: 0}, resp.Enrollment.Summary)
	})

	t.Run("already enrolled", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, token, body(c.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Message: "Already enrolled in this course"}),
		}, rec)
	})
}

func Test_enrollmentAPI_enrollConcurrently(t *testing.T) {
	resetDB()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a"})
	token := getToken(t, bob)
	body := marshalObj(t, map[string]string{"courseId": c.ID})

	const n = 10
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, rec := newAuthRequest(http.MethodPost, "/api/enrollments", token, body)
			app.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	var created, rejected int
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)

	counts, err := store.Enrollments.CountEnrollmentsByCourse(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[c.ID])
}

func Test_enrollmentAPI_query(t *testing.T) {
	resetDB()
	ctx := context.Background()
	now := time.Now()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	eve := testutil.CreateUser(t, store.Users, "Eve", "eve@test.cd", "", user.RoleStudent)

	c1 := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b", "c"})
	c2 := testutil.CreateCourse(t, store.Courses, ada, "Go", "Programming", []string{"a", "b", "c"})
	gone := testutil.CreateCourse(t, store.Courses, ada, "Gone", "Misc", []string{"a"})

	e1 := testutil.CreateEnrollment(t, store.Enrollments, bob, c1, []int{0}, now.Add(1*time.Minute))
	e2 := testutil.CreateEnrollment(t, store.Enrollments, bob, c2, []int{0, 1, 2}, now.Add(2*time.Minute))
	testutil.CreateEnrollment(t, store.Enrollments, bob, gone, nil, now.Add(3*time.Minute))
	testutil.CreateEnrollment(t, store.Enrollments, eve, c1, []int{1}, now.Add(4*time.Minute))

	// orphaned enrollment: the course vanished without the cascade
	require.NoError(t, store.Courses.DeleteCourse(ctx, gone.ID, ada.ID))

	// c2 lost a video: index 2 is stale
	c2.Videos = c2.Videos[:2]
	_, err := store.Courses.UpdateCourse(ctx, c2)
	require.NoError(t, err)

	path := "/api/enrollments"
	tests := []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAuthRequired)},
		{name: "student required", path: path, token: getToken(t, ada), wantCode: http.StatusForbidden, wantData: marshalObj(t, errMustBeStudent)},
		{
			name: "own enrollments, newest first", path: path, token: getToken(t, bob), wantCode: http.StatusOK,
			wantData: marshalObj(t, map[string]interface{}{"enrollments": []enrollment.Detail{
				newDetail(e2, c2, bob),
				newDetail(e1, c1, bob),
			}}),
		},
	}
	runHTTPTests(t, tests)

	stale := newDetail(e2, c2, bob)
	assert.Equal(t, enrollment.Summary{CompletedVideos: 2, TotalVideos: 2, CompletionPercentage: 100}, stale.Summary)
	assert.Equal(t, []int{0, 1, 2}, stale.Progress)
}

func Test_enrollmentAPI_updateProgress(t *testing.T) {
	resetDB()
	ada := testutil.CreateUser(t, store.Users, "Ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, store.Users, "Bob", "bob@test.cd", "", user.RoleStudent)
	eve := testutil.CreateUser(t, store.Users, "Eve", "eve@test.cd", "", user.RoleStudent)
	c := testutil.CreateCourse(t, store.Courses, ada, "Docker", "DevOps", []string{"a", "b", "c"})
	e := testutil.CreateEnrollment(t, store.Enrollments, bob, c, nil)
	token := getToken(t, bob)

	path := "/api/enrollments/" + e.ID + "/progress"
	body := func(idx int) []byte {
		return marshalObj(t, map[string]int{"videoIndex": idx})
	}
	progress := func(completed, pct int) []byte {
		return marshalObj(t, map[string]interface{}{
			"message":              "Progress updated successfully",
			"completedVideos":      completed,
			"totalVideos":          3,
			"completionPercentage": pct,
		})
	}
	invalidIdx := marshalObj(t, httpErr{Message: "Invalid video index"})
	notFound := marshalObj(t, httpErr{Message: "Enrollment not found or access denied"})

	tests := []httpTest{
		{name: "auth required", method: http.MethodPut, path: path, body: body(0), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAuthRequired)},
		{name: "student required", method: http.MethodPut, path: path, body: body(0), token: getToken(t, ada), wantCode: http.StatusForbidden, wantData: marshalObj(t, errMustBeStudent)},
		{name: "not the owner", method: http.MethodPut, path: path, body: body(0), token: getToken(t, eve), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown enrollment", method: http.MethodPut, path: "/api/enrollments/lol/progress", body: body(0), token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "missing videoIndex", method: http.MethodPut, path: path, body: []byte("{}"), token: token, wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Message: "Validation failed", Errors: map[string]string{"videoIndex": "this field is required"}}),
		},
		{name: "negative index", method: http.MethodPut, path: path, body: body(-1), token: token, wantCode: http.StatusBadRequest, wantData: invalidIdx},
		{name: "index == total", method: http.MethodPut, path: path, body: body(3), token: token, wantCode: http.StatusBadRequest, wantData: invalidIdx},
		{name: "first video", method: http.MethodPut, path: path, body: body(0), token: token, wantCode: http.StatusOK, wantData: progress(1, 33)},
		{name: "first video again", method: http.MethodPut, path: path, body: body(0), token: token, wantCode: http.StatusOK, wantData: progress(1, 33)},
		{name: "third video", method: http.MethodPut, path: path, body: body(2), token: token, wantCode: http.StatusOK, wantData: progress(2, 67)},
		{name: "second video", method: http.MethodPut, path: path, body: body(1), token: token, wantCode: http.StatusOK, wantData: progress(3, 100)},
	}
	runHTTPTests(t, tests)

	stored, err := store.Enrollments.GetEnrollment(context.Background(), enrollment.GetFilter{ID: e.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2}, stored.Progress)

	t.Run("course deleted", func(t *testing.T) {
		require.NoError(t, store.Courses.DeleteCourse(context.Background(), c.ID, ada.ID))
		req, rec := newAuthRequest(http.MethodPut, path, token, body(0))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: notFound}, rec)
	})
}
