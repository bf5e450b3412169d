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

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `exam_id, subject_id, course_id, token, answers, question_order,
	option_order, score, correct_count, passed, status, joined_at, finished_at`

func scanSession(row rowScanner) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(
		&s.ExamID, &s.SubjectID, &s.CourseID, &s.Token, &s.Answers, &s.QuestionOrder,
		&s.OptionOrder, &s.Score, &s.CorrectCount, &s.Passed, &s.Status, &s.JoinedAt, &s.FinishedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	return s, nil
}

// Create inserts a new session (candidate joins the exam). When a session for
// the same (exam, subject) already exists nothing is written and
// ErrAlreadyExists is returned.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	questionOrder, err := json.Marshal(s.QuestionOrder)
	if err != nil {
		return fmt.Errorf("marshal question_order: %w", err)
	}
	optionOrder, err := json.Marshal(s.OptionOrder)
	if err != nil {
		return fmt.Errorf("marshal option_order: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, subject_id, course_id, token, answers,
		     question_order, option_order, status, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (exam_id, subject_id) DO NOTHING
		 RETURNING joined_at`,
		s.ExamID, s.SubjectID, s.CourseID, s.Token, answers,
		questionOrder, optionOrder, model.SessionStatusInProgress, s.JoinedAt,
	).Scan(&s.JoinedAt)
	if err = mapErr(err); err == ErrNotFound {
		// ON CONFLICT DO NOTHING returns no row: a concurrent join won.
		return ErrAlreadyExists
	}
	return err
}

// GetByExamAndSubject retrieves the session for a specific exam-subject pair.
func (r *ExamSessionRepository) GetByExamAndSubject(ctx context.Context, examID uuid.UUID, subjectID string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND subject_id = $2`, examID, subjectID))
}

// SetAnswer records optionID for questionID, touching only that key so
// concurrent submissions for other questions are preserved.
func (r *ExamSessionRepository) SetAnswer(ctx context.Context, examID uuid.UUID, subjectID, questionID, optionID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = jsonb_set(answers, ARRAY[$3::text], to_jsonb($4::text), true),
		     updated_at = NOW()
		 WHERE exam_id = $1 AND subject_id = $2`,
		examID, subjectID, questionID, optionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByExam returns every session of an exam ordered by join time.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1
		 ORDER BY joined_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.ExamSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Complete seals a session with its grade. Re-running it rewrites the same values.
func (r *ExamSessionRepository) Complete(ctx context.Context, examID uuid.UUID, subjectID string, g model.GradeResult) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, score = $2, correct_count = $3, passed = $4,
		     finished_at = $5, updated_at = $6
		 WHERE exam_id = $7 AND subject_id = $8`,
		model.SessionStatusFinished, g.Score, g.CorrectCount, g.Passed,
		g.FinishedAt, time.Now(), examID, subjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
