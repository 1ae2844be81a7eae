package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learntube/backend/core"
)

type Video struct {
	Title     string `json:"title" validate:"required"`
	YoutubeID string `json:"youtubeId" validate:"required,youtubeid"`
}

// Instructor is the public view of the User owning a Course.
type Instructor struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Course is an ordered list of YouTube videos published by an instructor.
// Video indices in enrollment progress refer to positions in Videos.
type Course struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Instructor  Instructor `json:"instructor"`
	Videos      []Video    `json:"videos"`
	CreatedAt   time.Time  `json:"createdAt"` // UTC
	UpdatedAt   time.Time  `json:"updatedAt"` // UTC
}

func (c Course) TotalVideos() int { return len(c.Videos) }

func (c Course) IsOwnedBy(instructorID string) bool { return c.Instructor.ID == instructorID }

// InstructorCourse is a Course as listed on its instructor's dashboard.
type InstructorCourse struct {
	Course
	EnrollmentCount int `json:"enrollmentCount"`
}

// Category is an aggregation of courses sharing the same category.
type Category struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"notblank"`
	Videos      []Video `json:"videos" validate:"required,min=1,dive"`
}

// Validate trims the text fields and normalizes YouTube URLs into ids.
// The category is kept verbatim: filtering on it is exact.
func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	for i := range nc.Videos {
		nc.Videos[i].clean()
	}
	return validate.Struct(nc)
}

// UpdateCourse replaces all the editable fields of a Course.
type UpdateCourse NewCourse

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	return (*NewCourse)(uc).Validate(validate)
}

func (v *Video) clean() {
	v.Title = core.CleanString(v.Title)
	v.YoutubeID = core.CleanString(v.YoutubeID)
	if id, ok := ExtractYoutubeID(v.YoutubeID); ok {
		v.YoutubeID = id
	}
}

type QueryFilter struct {
	Category     string
	InstructorID string
}
