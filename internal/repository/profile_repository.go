package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examinator/internal/model"
)

// ProfileRepository handles subject profile data access.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByID retrieves a profile by subject id.
func (r *ProfileRepository) GetByID(ctx context.Context, subjectID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT subject_id, role, email, first_name, last_name, courses, exams, created_at, updated_at
		 FROM profiles
		 WHERE subject_id = $1`, subjectID,
	).Scan(&p.SubjectID, &p.Role, &p.Email, &p.FirstName, &p.LastName, &p.Courses, &p.Exams, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if p.Exams == nil {
		p.Exams = map[string]model.ProfileExam{}
	}
	return p, nil
}

// Upsert creates or replaces a profile's identity fields and course list.
// The exams map is left untouched on update.
func (r *ProfileRepository) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (subject_id, role, email, first_name, last_name, courses)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subject_id) DO UPDATE
		 SET role = EXCLUDED.role, email = EXCLUDED.email,
		     first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		     courses = EXCLUDED.courses, updated_at = NOW()`,
		p.SubjectID, p.Role, p.Email, p.FirstName, p.LastName, p.Courses)
	return err
}

// PutExamSummary writes the per-exam summary under exams[examID].
func (r *ProfileRepository) PutExamSummary(ctx context.Context, subjectID string, summary model.ProfileExam) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal profile exam: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles
		 SET exams = jsonb_set(exams, ARRAY[$2::text], $3::jsonb, true),
		     updated_at = NOW()
		 WHERE subject_id = $1`,
		subjectID, summary.ExamID.String(), raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishExamSummary merges the finisher's verdict into exams[examID],
// creating the entry when the join-time write never landed.
func (r *ProfileRepository) FinishExamSummary(ctx context.Context, subjectID string, examID uuid.UUID, verdict model.ExamVerdict) error {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal profile verdict: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles
		 SET exams = jsonb_set(
		         exams, ARRAY[$2::text],
		         COALESCE(exams -> $2::text, '{}'::jsonb) || $3::jsonb, true),
		     updated_at = NOW()
		 WHERE subject_id = $1`,
		subjectID, examID.String(), raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
