package sqlite

import (
	"context"
	"time"

	"github.com/example/exam-timeline/internal/persistence"
)

// ExamRepository implements persistence.ExamRepository using SQLite.
type ExamRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewExamRepository creates a new SQLite exam repository.
func NewExamRepository(pool *ConnectionPool) *ExamRepository {
	return &ExamRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

const examColumns = `id, course_code, title, expected_candidates, duration_minutes, created_at, updated_at`

// CreateExam inserts a new exam.
func (r *ExamRepository) CreateExam(ctx context.Context, exam persistence.Exam) error {
	if exam.ID == "" || exam.CourseCode == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	if exam.UpdatedAt.IsZero() {
		exam.UpdatedAt = exam.CreatedAt
	}

	query := `
		INSERT INTO exams (` + examColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		exam.ID,
		exam.CourseCode,
		exam.Title,
		exam.ExpectedCandidates,
		exam.DurationMinutes,
		formatTimestamp(exam.CreatedAt),
		formatTimestamp(exam.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetExam retrieves an exam by ID.
func (r *ExamRepository) GetExam(ctx context.Context, id string) (persistence.Exam, error) {
	if id == "" {
		return persistence.Exam{}, persistence.ErrNotFound
	}
	exam, err := scanExam(r.helper.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err != nil {
		return persistence.Exam{}, r.mapper.MapError(err)
	}
	return exam, nil
}

// ListExams returns every exam ordered by course code.
func (r *ExamRepository) ListExams(ctx context.Context) ([]persistence.Exam, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+examColumns+` FROM exams ORDER BY course_code ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var exams []persistence.Exam
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		exams = append(exams, exam)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return exams, nil
}

// DeleteExam removes an exam together with its allocations.
func (r *ExamRepository) DeleteExam(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, "DELETE FROM exams WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanExam(row rowScanner) (persistence.Exam, error) {
	var (
		exam                 persistence.Exam
		createdAt, updatedAt string
	)
	if err := row.Scan(&exam.ID, &exam.CourseCode, &exam.Title, &exam.ExpectedCandidates, &exam.DurationMinutes, &createdAt, &updatedAt); err != nil {
		return persistence.Exam{}, err
	}
	var err error
	if exam.CreatedAt, exam.UpdatedAt, err = parseTimestamps(createdAt, updatedAt); err != nil {
		return persistence.Exam{}, err
	}
	return exam, nil
}
