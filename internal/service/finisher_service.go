package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/blob"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/websocket"
	"golang.org/x/sync/errgroup"
)

// FinisherService grades every session of an exam once its window has closed.
type FinisherService struct {
	exams       ExamStore
	sessions    SessionStore
	profiles    ProfileStore
	blobs       blob.Store
	events      EventPublisher
	tokens      *TokenService
	concurrency int
	log         zerolog.Logger

	now func() time.Time
}

// NewFinisherService creates a new FinisherService. concurrency bounds how
// many sessions are written at once.
func NewFinisherService(
	exams ExamStore,
	sessions SessionStore,
	profiles ProfileStore,
	blobs blob.Store,
	events EventPublisher,
	tokens *TokenService,
	concurrency int,
	log zerolog.Logger,
) *FinisherService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FinisherService{
		exams:       exams,
		sessions:    sessions,
		profiles:    profiles,
		blobs:       blobs,
		events:      events,
		tokens:      tokens,
		concurrency: concurrency,
		log:         log.With().Str("component", "finisher_service").Logger(),
		now:         time.Now,
	}
}

// Finish verifies the ticket and grades the exam it names. Running it again
// rewrites the same grades.
func (s *FinisherService) Finish(ctx context.Context, ticket string) (*model.FinishReport, error) {
	claims, err := s.tokens.VerifyFinisherTicket(ticket)
	if err != nil {
		return nil, err
	}
	examID, err := uuid.Parse(claims.ExamID)
	if err != nil {
		return nil, authErr(response.ErrFinisherTicketInvalid, "")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrExamNotFound, "")
		}
		return nil, upstreamErr("get exam", err)
	}
	if exam.Status == model.ExamStatusCanceled {
		return nil, conflictErr(response.ErrExamCanceled, "")
	}

	var content model.ExamContent
	if err := blob.GetJSON(ctx, s.blobs, blob.ExamContentKey(exam.CourseID, exam.ID), &content); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, notFoundErr(response.ErrNotFound, "Exam content not found.")
		}
		return nil, upstreamErr("get exam content", err)
	}

	joined, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, upstreamErr("list sessions", err)
	}
	if len(joined) == 0 {
		return nil, notFoundErr(response.ErrNoSessions, "")
	}

	// Close the exam before reading the answers to grade, so no submission
	// lands after the read. A re-run finds it already finished.
	if err := s.closeExam(ctx, examID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, upstreamErr("list sessions", err)
	}

	key := content.AnswerKey()
	now := s.now().UTC()
	report := &model.FinishReport{ExamID: examID, Graded: len(sessions)}
	var passed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range sessions {
		sess := sessions[i]
		finishedAt := now
		if sess.FinishedAt != nil {
			finishedAt = *sess.FinishedAt
		}
		grade := Grade(key, sess.Answers, exam.MinimumPassingScore, finishedAt)
		if grade.Passed {
			passed.Add(1)
		}

		g.Go(func() error {
			return s.seal(gctx, examID, sess.SubjectID, grade)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstreamErr("grade sessions", err)
	}

	report.Passed = int(passed.Load())
	report.Failed = report.Graded - report.Passed

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("graded", report.Graded).
		Int("passed", report.Passed).
		Msg("Exam graded")
	publish(ctx, s.events, s.log, examID, websocket.MonitorEvent{
		Event:  websocket.EventGraded,
		ExamID: examID,
		Graded: report.Graded,
		Passed: report.Passed,
		At:     now,
	})

	return report, nil
}

// closeExam moves the exam to finished. An exam already finished is fine;
// one canceled in the meantime is refused.
func (s *FinisherService) closeExam(ctx context.Context, examID uuid.UUID) error {
	err := s.exams.UpdateStatus(ctx, examID, model.ExamStatusNormal, model.ExamStatusFinished)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return upstreamErr("finish exam", err)
	}
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return upstreamErr("get exam", err)
	}
	if exam.Status == model.ExamStatusCanceled {
		return conflictErr(response.ErrExamCanceled, "")
	}
	return nil
}

// seal writes the profile verdict and the session grade concurrently.
func (s *FinisherService) seal(ctx context.Context, examID uuid.UUID, subjectID string, grade model.GradeResult) error {
	verdict := model.ExamVerdict{
		Status:       model.SessionStatusFinished,
		Passed:       grade.Passed,
		Score:        grade.Score,
		CorrectCount: grade.CorrectCount,
		FinishedAt:   grade.FinishedAt,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.profiles.FinishExamSummary(gctx, subjectID, examID, verdict); err != nil {
			return fmt.Errorf("profile verdict %s: %w", subjectID, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.sessions.Complete(gctx, examID, subjectID, grade); err != nil {
			return fmt.Errorf("complete session %s: %w", subjectID, err)
		}
		return nil
	})
	return g.Wait()
}
