package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/persistence"
)

// ExamRepository captures the persistence operations needed by ExamService.
type ExamRepository interface {
	CreateExam(ctx context.Context, exam Exam) (Exam, error)
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
}

// ExamService registers exams.
type ExamService struct {
	exams       ExamRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewExamService constructs an exam service.
func NewExamService(exams ExamRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ExamService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ExamService{exams: exams, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateExam validates input and persists a new exam.
func (s *ExamService) CreateExam(ctx context.Context, input ExamInput) (exam Exam, err error) {
	logger := serviceLogger(ctx, s.logger, "ExamService", "CreateExam", "course_code", input.CourseCode)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create exam", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("exam_id", exam.ID).InfoContext(ctx, "exam created")
	}()

	input.CourseCode = strings.TrimSpace(input.CourseCode)
	input.Title = strings.TrimSpace(input.Title)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	exam = Exam{
		ID:                 s.idGenerator(),
		CourseCode:         input.CourseCode,
		Title:              input.Title,
		ExpectedCandidates: input.ExpectedCandidates,
		DurationMinutes:    input.DurationMinutes,
		CreatedAt:          s.now(),
	}
	exam.UpdatedAt = exam.CreatedAt

	exam, err = s.exams.CreateExam(ctx, exam)
	if err != nil {
		err = mapExamRepoError(err)
	}
	return
}

// ListExams returns every exam.
func (s *ExamService) ListExams(ctx context.Context) ([]Exam, error) {
	exams, err := s.exams.ListExams(ctx)
	if err != nil {
		return nil, mapExamRepoError(err)
	}
	return exams, nil
}

func mapExamRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
