package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
)

// Enrollment ties a student to a course. Progress is a set of completed video indices.
type Enrollment struct {
	ID         string    `json:"_id"`
	StudentID  string    `json:"student"`
	CourseID   string    `json:"course"`
	Progress   []int     `json:"progress"`
	EnrolledAt time.Time `json:"enrolledAt"` // UTC
}

func (e Enrollment) HasCompleted(videoIndex int) bool {
	for _, idx := range e.Progress {
		if idx == videoIndex {
			return true
		}
	}
	return false
}

// Student is the public view of the User owning an Enrollment.
type Student struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Detail is an Enrollment with its course & student populated and its Summary computed.
type Detail struct {
	ID       string        `json:"_id"`
	Course   course.Course `json:"course"`
	Student  Student       `json:"student"`
	Progress []int         `json:"progress"`
	Summary
	EnrolledAt time.Time `json:"enrolledAt"`
}

func newDetail(e Enrollment, c course.Course, student Student) Detail {
	progress := e.Progress
	if progress == nil {
		progress = []int{}
	}
	return Detail{
		ID:         e.ID,
		Course:     c,
		Student:    student,
		Progress:   progress,
		Summary:    Summarize(progress, c.TotalVideos()),
		EnrolledAt: e.EnrolledAt,
	}
}

type NewEnrollment struct {
	CourseID string `json:"courseId" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

type ProgressUpdate struct {
	VideoIndex *int `json:"videoIndex" validate:"required"`
}

func (pu *ProgressUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(pu)
}

// GetFilter selects a single Enrollment. Set fields are ANDed.
type GetFilter struct {
	ID        string
	StudentID string
}

type QueryFilter struct {
	StudentID string
}
