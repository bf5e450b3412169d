package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examinator/internal/model"
)

// ExamRepository handles exam record data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, course_id, course_name, name, description, minimum_passing_score,
	total_points, duration_minutes, start_time, end_time, status,
	is_questions_randomized, is_options_randomized, questions_meta_data,
	created_by, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(
		&e.ID, &e.CourseID, &e.CourseName, &e.Name, &e.Description, &e.MinimumPassingScore,
		&e.TotalPoints, &e.DurationMinutes, &e.StartTime, &e.EndTime, &e.Status,
		&e.IsQuestionsRandomized, &e.IsOptionsRandomized, &e.QuestionsMetaData,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return e, nil
}

// Create inserts a new exam. A duplicate id yields ErrAlreadyExists.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	meta, err := json.Marshal(e.QuestionsMetaData)
	if err != nil {
		return fmt.Errorf("marshal questions_meta_data: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exams (`+examColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.CourseID, e.CourseName, e.Name, e.Description, e.MinimumPassingScore,
		e.TotalPoints, e.DurationMinutes, e.StartTime, e.EndTime, e.Status,
		e.IsQuestionsRandomized, e.IsOptionsRandomized, meta,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	return mapErr(err)
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListByCourse returns a course's exams ordered by start time.
func (r *ExamRepository) ListByCourse(ctx context.Context, courseID string) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams
		 WHERE course_id = $1
		 ORDER BY start_time ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// UpdateStatus moves an exam from one status to another. It returns
// ErrConditionFailed when the exam is not currently in status from.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}
