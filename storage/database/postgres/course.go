package pgrepos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core/course"
)

const courseColumns = "id, title, description, category, instructor_id, videos, created_at, updated_at"

// videos is stored as a jsonb array.
type videos []course.Video

func (v videos) Value() (driver.Value, error) {
	if v == nil {
		v = videos{}
	}
	return json.Marshal(v)
}

func (v *videos) Scan(src interface{}) error {
	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	case nil:
		*v = videos{}
		return nil
	default:
		return errors.Errorf("unsupported videos type %T", src)
	}
	return json.Unmarshal(data, v)
}

type (
	courseRow struct {
		ID           string    `db:"id"`
		Title        string    `db:"title"`
		Description  string    `db:"description"`
		Category     string    `db:"category"`
		InstructorID string    `db:"instructor_id"`
		Videos       videos    `db:"videos"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	categoryRow struct {
		Name  string `db:"name"`
		Count int    `db:"count"`
	}
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.DB}
}

func (repo courseRepository) toRow(c course.Course) courseRow {
	return courseRow{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Category:     c.Category,
		InstructorID: c.Instructor.ID,
		Videos:       videos(c.Videos),
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromRow(r courseRow) course.Course {
	vids := []course.Video(r.Videos)
	if vids == nil {
		vids = []course.Video{}
	}
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Instructor:  course.Instructor{ID: r.InstructorID},
		Videos:      vids,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) fromRows(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, repo.fromRow(r))
	}
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :title, :description, :category, :instructor_id, :videos, :created_at, :updated_at)`
	r := repo.toRow(c)
	if _, err := repo.db.NamedExecContext(ctx, q, r); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.fromRow(r), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var r courseRow
	if err := repo.db.GetContext(ctx, &r, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return repo.fromRow(r), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses
		WHERE ($1::text = '' OR category = $1) AND ($2::text = '' OR instructor_id = $2)
		ORDER BY created_at DESC, id DESC`

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.Category, filter.InstructorID); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return repo.fromRows(rows), nil
}

func (repo *courseRepository) QueryCoursesByID(ctx context.Context, ids ...string) (map[string]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM courses WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make(map[string]course.Course, len(rows))
	for _, c := range repo.fromRows(rows) {
		courses[c.ID] = c
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `UPDATE courses
		SET title = :title, description = :description, category = :category, videos = :videos, updated_at = :updated_at
		WHERE id = :id AND instructor_id = :instructor_id
		RETURNING ` + courseColumns

	rows, err := repo.db.NamedQueryContext(ctx, q, repo.toRow(c))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return course.Course{}, errors.Wrap(err, "updating course")
		}
		return course.Course{}, course.ErrNotFound
	}
	var r courseRow
	if err = rows.StructScan(&r); err != nil {
		return course.Course{}, errors.Wrap(err, "scanning course")
	}
	return repo.fromRow(r), nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id, instructorID string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1 AND instructor_id = $2`, id, instructorID)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) QueryCategories(ctx context.Context) ([]course.Category, error) {
	q := `SELECT category AS name, COUNT(*) AS count FROM courses
		GROUP BY category
		ORDER BY count DESC, category ASC`

	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting categories")
	}
	cats := make([]course.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, course.Category{ID: r.Name, Name: r.Name, Count: r.Count})
	}
	return cats, nil
}
