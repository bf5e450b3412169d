package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/websocket"
)

// ExamStore persists exam records.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Exam, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) error
}

// SessionStore persists exam sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByExamAndSubject(ctx context.Context, examID uuid.UUID, subjectID string) (*model.ExamSession, error)
	SetAnswer(ctx context.Context, examID uuid.UUID, subjectID, questionID, optionID string) error
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
	Complete(ctx context.Context, examID uuid.UUID, subjectID string, g model.GradeResult) error
}

// ProfileStore persists subject profiles and their per-exam summaries.
type ProfileStore interface {
	GetByID(ctx context.Context, subjectID string) (*model.Profile, error)
	PutExamSummary(ctx context.Context, subjectID string, summary model.ProfileExam) error
	FinishExamSummary(ctx context.Context, subjectID string, examID uuid.UUID, verdict model.ExamVerdict) error
}

// Scheduler arms a one-shot finisher job at or after fireAt.
type Scheduler interface {
	Schedule(ctx context.Context, fireAt time.Time, job model.FinisherJob) error
}

// EventPublisher fans monitor events out to live watchers.
type EventPublisher interface {
	Publish(ctx context.Context, examID uuid.UUID, ev websocket.MonitorEvent) error
}
