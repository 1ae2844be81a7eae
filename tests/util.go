package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
)

// NewConfig returns the TEST config: in-memory database, no external services.
func NewConfig() *core.Config {
	if err := os.Setenv("ENV", "TEST"); err != nil {
		panic(err)
	}
	conf := core.NewConfig()
	conf.Database.Engine = core.EngineMemory
	conf.Email.SendgridAPIKey = ""
	conf.RollbarToken = ""
	return conf
}

// NewValidator returns a validator with every custom validation & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp.Truncate(time.Millisecond),
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateCourse stores a course with one video per title.
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	instructor user.User,
	title, category string,
	videoTitles []string,
	createdAt ...time.Time,
) course.Course {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	videos := make([]course.Video, 0, len(videoTitles))
	for i, vt := range videoTitles {
		videos = append(videos, course.Video{Title: vt, YoutubeID: VideoID(i)})
	}
	c := course.Course{
		ID:          uuid.NewString(),
		Title:       title,
		Description: title + " description",
		Category:    category,
		Instructor:  course.Instructor{ID: instructor.ID},
		Videos:      videos,
		CreatedAt:   tstamp.Truncate(time.Millisecond),
		UpdatedAt:   tstamp.Truncate(time.Millisecond),
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	c.Instructor.Name = instructor.Name
	return c
}

func CreateEnrollment(
	t *testing.T,
	repo enrollment.Repository,
	student user.User,
	c course.Course,
	progress []int,
	enrolledAt ...time.Time,
) enrollment.Enrollment {
	tstamp := time.Now().UTC()
	if len(enrolledAt) > 0 {
		tstamp = enrolledAt[0].UTC()
	}
	if progress == nil {
		progress = []int{}
	}
	e, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  student.ID,
		CourseID:   c.ID,
		Progress:   progress,
		EnrolledAt: tstamp.Truncate(time.Millisecond),
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return e
}

// VideoID returns a valid, deterministic YouTube video id.
func VideoID(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	id := []byte("dQw4w9WgXc")
	return string(id) + string(alphabet[i%len(alphabet)])
}
