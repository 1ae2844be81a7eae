package pgrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
)

const enrollmentColumns = "id, student_id, course_id, progress, enrolled_at"

type (
	enrollmentRow struct {
		ID         string        `db:"id"`
		StudentID  string        `db:"student_id"`
		CourseID   string        `db:"course_id"`
		Progress   pq.Int64Array `db:"progress"`
		EnrolledAt time.Time     `db:"enrolled_at"`
	}

	enrollmentCountRow struct {
		CourseID string `db:"course_id"`
		Count    int    `db:"count"`
	}
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.DB}
}

func (repo enrollmentRepository) toRow(e enrollment.Enrollment) enrollmentRow {
	progress := make(pq.Int64Array, 0, len(e.Progress))
	for _, idx := range e.Progress {
		progress = append(progress, int64(idx))
	}
	return enrollmentRow{
		ID:         e.ID,
		StudentID:  e.StudentID,
		CourseID:   e.CourseID,
		Progress:   progress,
		EnrolledAt: e.EnrolledAt.UTC(),
	}
}

func (repo enrollmentRepository) fromRow(r enrollmentRow) enrollment.Enrollment {
	progress := make([]int, 0, len(r.Progress))
	for _, idx := range r.Progress {
		progress = append(progress, int(idx))
	}
	return enrollment.Enrollment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		CourseID:   r.CourseID,
		Progress:   progress,
		EnrolledAt: r.EnrolledAt.UTC(),
	}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :student_id, :course_id, :progress, :enrolled_at)`
	r := repo.toRow(e)
	if _, err := repo.db.NamedExecContext(ctx, q, r); err != nil {
		switch code, constraint := pqError(err); {
		case code == uniqueViolation && constraint == "enrollments_student_course_key":
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		case code == foreignKeyViolation && constraint == "enrollments_course_id_fkey":
			return enrollment.Enrollment{}, course.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.fromRow(r), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE id = $1 AND ($2::text = '' OR student_id = $2)`

	var r enrollmentRow
	if err := repo.db.GetContext(ctx, &r, q, filter.ID, filter.StudentID); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound)
	}
	return repo.fromRow(r), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments
		WHERE ($1::text = '' OR student_id = $1)
		ORDER BY enrolled_at DESC, id DESC`

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.StudentID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, repo.fromRow(r))
	}
	return enrollments, nil
}

// AddProgress appends videoIndex unless already present, in a single statement.
// The row lock taken by UPDATE serializes concurrent calls.
func (repo *enrollmentRepository) AddProgress(ctx context.Context, id, studentID string, videoIndex int) (enrollment.Enrollment, error) {
	q := `UPDATE enrollments
		SET progress = CASE WHEN $3::int = ANY(progress) THEN progress ELSE array_append(progress, $3::int) END
		WHERE id = $1 AND student_id = $2
		RETURNING ` + enrollmentColumns

	var r enrollmentRow
	if err := repo.db.GetContext(ctx, &r, q, id, studentID, videoIndex); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound)
	}
	return repo.fromRow(r), nil
}

func (repo *enrollmentRepository) QueryCourseIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := repo.db.SelectContext(ctx, &ids, `SELECT DISTINCT course_id FROM enrollments ORDER BY course_id`); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled course IDs")
	}
	return ids, nil
}

func (repo *enrollmentRepository) CountEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (map[string]int, error) {
	q := `SELECT course_id, COUNT(*) AS count FROM enrollments
		WHERE course_id = ANY($1)
		GROUP BY course_id`

	var rows []enrollmentCountRow
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(courseIDs)); err != nil {
		return nil, errors.Wrap(err, "counting enrollments")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.CourseID] = r.Count
	}
	return counts, nil
}

func (repo *enrollmentRepository) DeleteEnrollmentsByCourse(ctx context.Context, courseIDs ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = ANY($1)`, pq.Array(courseIDs))
	if err != nil {
		return 0, errors.Wrap(err, "deleting enrollments")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting enrollments")
	}
	return int(n), nil
}
