package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/websocket"
)

// SubmissionService records candidate answers.
type SubmissionService struct {
	exams    ExamStore
	sessions SessionStore
	events   EventPublisher
	log      zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(exams ExamStore, sessions SessionStore, events EventPublisher, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		exams:    exams,
		sessions: sessions,
		events:   events,
		log:      log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit records optionID as the answer to questionID, overwriting any
// previous answer. Correctness is never revealed.
//
// The window is bounded by the exam status, not the clock: answers arriving
// after end_time are accepted until the finisher marks the exam finished.
func (s *SubmissionService) Submit(ctx context.Context, id *Identity, claims *ExamClaims, examID uuid.UUID, req *model.SubmitAnswerRequest) (*model.SubmitAnswerResult, error) {
	if claims.Subject != id.SubjectID || claims.ExamID != examID.String() {
		return nil, authErr(response.ErrExamTokenMismatch, "")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrExamNotFound, "")
		}
		return nil, upstreamErr("get exam", err)
	}
	if err := statusConflict(exam.Status); err != nil {
		return nil, err
	}

	if !exam.QuestionsMetaData.HasOption(req.QuestionID, req.OptionID) {
		return nil, validationErr(response.ErrInvalidAnswerPair, "")
	}

	if err := s.sessions.SetAnswer(ctx, examID, id.SubjectID, req.QuestionID, req.OptionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrSessionNotFound, "")
		}
		return nil, upstreamErr("set answer", err)
	}

	s.log.Debug().
		Str("exam_id", examID.String()).
		Str("subject_id", id.SubjectID).
		Str("question_id", req.QuestionID).
		Msg("Answer recorded")
	publish(ctx, s.events, s.log, examID, websocket.MonitorEvent{
		Event:      websocket.EventAnswered,
		ExamID:     examID,
		SubjectID:  id.SubjectID,
		QuestionID: req.QuestionID,
		At:         time.Now().UTC(),
	})

	return &model.SubmitAnswerResult{ExamID: examID, QuestionID: req.QuestionID, Saved: true}, nil
}
