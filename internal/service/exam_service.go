package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/blob"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	questionIDLength = 16
	optionIDLength   = 10
	// Option ids use a short lowercase alphabet; the differing length keeps them apart from question ids.
	optionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ExamService handles exam authoring and staff-side exam management.
type ExamService struct {
	exams     ExamStore
	sessions  SessionStore
	profiles  ProfileStore
	blobs     blob.Store
	scheduler Scheduler
	events    EventPublisher
	tokens    *TokenService
	catalog   *CourseCatalog
	log       zerolog.Logger

	finisherDelay time.Duration
	finisherGrace time.Duration

	now        func() time.Time
	questionID func() (string, error)
	optionID   func() (string, error)
}

// ExamServiceDeps groups ExamService collaborators.
type ExamServiceDeps struct {
	Exams     ExamStore
	Sessions  SessionStore
	Profiles  ProfileStore
	Blobs     blob.Store
	Scheduler Scheduler
	Events    EventPublisher
	Tokens    *TokenService
	Catalog   *CourseCatalog
}

// NewExamService creates a new ExamService.
func NewExamService(deps ExamServiceDeps, cfg *config.Config, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:         deps.Exams,
		sessions:      deps.Sessions,
		profiles:      deps.Profiles,
		blobs:         deps.Blobs,
		scheduler:     deps.Scheduler,
		events:        deps.Events,
		tokens:        deps.Tokens,
		catalog:       deps.Catalog,
		log:           log.With().Str("component", "exam_service").Logger(),
		finisherDelay: cfg.FinisherDelay,
		finisherGrace: cfg.FinisherGrace,
		now:           time.Now,
		questionID:    func() (string, error) { return gonanoid.New(questionIDLength) },
		optionID:      func() (string, error) { return gonanoid.Generate(optionIDAlphabet, optionIDLength) },
	}
}

// Create authors a new exam: it writes the private content blob and the
// public record, and arms the finisher. The three writes run concurrently;
// a failure in one does not undo the others.
func (s *ExamService) Create(ctx context.Context, id *Identity, req *model.CreateExamRequest) (*model.Exam, error) {
	if !id.Role.IsStaff() {
		return nil, authErr(response.ErrStaffOnly, "")
	}

	course, ok := s.catalog.Lookup(req.CourseID)
	if !ok {
		return nil, validationErr(response.ErrUnknownCourse, fmt.Sprintf("Course %q does not exist.", req.CourseID))
	}

	now := s.now().UTC()
	start := time.Unix(req.StartDate, 0).UTC()
	end := start.Add(time.Duration(req.Duration) * time.Minute)
	if !end.After(now) {
		return nil, validationErr(response.ErrExamEndInPast, "")
	}

	if len(req.Questions) > model.MaxQuestions {
		return nil, validationErr(response.ErrValidation,
			fmt.Sprintf("An exam has at most %d questions.", model.MaxQuestions))
	}
	if req.MinimumPassingScore < 0 || req.MinimumPassingScore > model.MaxPassingScore {
		return nil, validationErr(response.ErrValidation,
			fmt.Sprintf("Minimum passing score must be between 0 and %d.", model.MaxPassingScore))
	}
	for i, q := range req.Questions {
		if q.Points < 0 || q.Points > model.MaxQuestionPoints {
			return nil, validationErr(response.ErrValidation,
				fmt.Sprintf("Question %d points must be between 0 and %d.", i+1, model.MaxQuestionPoints))
		}
		if model.CountCorrect(q.Options) != 1 {
			return nil, validationErr(response.ErrValidation,
				fmt.Sprintf("Question %d must have exactly one correct option.", i+1))
		}
	}

	examID := uuid.New()
	content, err := s.buildContent(examID, course.ID, req.Questions)
	if err != nil {
		return nil, upstreamErr("generate ids", err)
	}

	total := content.TotalPoints()
	if req.MinimumPassingScore > total {
		return nil, validationErr(response.ErrPassingScore,
			fmt.Sprintf("Minimum passing score %d exceeds total points %d.", req.MinimumPassingScore, total))
	}

	exam := &model.Exam{
		ID:                    examID,
		CourseID:              course.ID,
		CourseName:            course.Label,
		Name:                  req.Name,
		Description:           req.Description,
		MinimumPassingScore:   req.MinimumPassingScore,
		TotalPoints:           total,
		DurationMinutes:       req.Duration,
		StartTime:             start,
		EndTime:               end,
		Status:                model.ExamStatusNormal,
		IsQuestionsRandomized: req.IsQuestionsRandomized,
		IsOptionsRandomized:   req.IsOptionsRandomized,
		QuestionsMetaData:     content.MetaData(),
		CreatedBy:             id.SubjectID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	ticket, err := s.tokens.IssueFinisherTicket(examID, course.ID, end.Add(s.finisherGrace))
	if err != nil {
		return nil, upstreamErr("issue finisher ticket", err)
	}
	job := model.FinisherJob{ExamID: examID.String(), CourseID: course.ID, Ticket: ticket}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := blob.PutJSON(gctx, s.blobs, blob.ExamContentKey(course.ID, examID), content); err != nil {
			return fmt.Errorf("put exam content: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.exams.Create(gctx, exam); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.scheduler.Schedule(gctx, end.Add(s.finisherDelay), job); err != nil {
			return fmt.Errorf("schedule finisher: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, upstreamErr("create exam", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("course_id", course.ID).
		Str("created_by", id.SubjectID).
		Int("questions", len(content.Questions)).
		Time("end_time", end).
		Msg("Exam created")

	return exam, nil
}

// buildContent assigns ids and extracts the correct marker of every question.
func (s *ExamService) buildContent(examID uuid.UUID, courseID string, questions []model.QuestionInput) (*model.ExamContent, error) {
	seen := make(map[string]struct{})
	unique := func(gen func() (string, error)) (string, error) {
		for {
			id, err := gen()
			if err != nil {
				return "", err
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				return id, nil
			}
		}
	}

	content := &model.ExamContent{
		ExamID:    examID,
		CourseID:  courseID,
		Questions: make([]model.ContentQuestion, 0, len(questions)),
	}
	for _, in := range questions {
		qid, err := unique(s.questionID)
		if err != nil {
			return nil, err
		}
		q := model.ContentQuestion{
			ID:      qid,
			Text:    in.QuestionText,
			Points:  in.Points,
			Options: make([]model.Option, 0, len(in.Options)),
		}
		for _, o := range in.Options {
			oid, err := unique(s.optionID)
			if err != nil {
				return nil, err
			}
			q.Options = append(q.Options, model.Option{ID: oid, Text: o.OptionText})
			if o.IsCorrect {
				q.CorrectOptionID = oid
			}
		}
		content.Questions = append(content.Questions, q)
	}
	return content, nil
}

// Get returns an exam record.
func (s *ExamService) Get(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return s.loadExam(ctx, examID)
}

func (s *ExamService) loadExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrExamNotFound, "")
		}
		return nil, upstreamErr("get exam", err)
	}
	return exam, nil
}

// ListByCourse lists a course's exams. Students must belong to the course.
func (s *ExamService) ListByCourse(ctx context.Context, id *Identity, courseID string) ([]model.ExamSummary, error) {
	if _, ok := s.catalog.Lookup(courseID); !ok {
		return nil, notFoundErr(response.ErrUnknownCourse, "")
	}

	if !id.Role.IsStaff() {
		profile, err := s.profiles.GetByID(ctx, id.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFoundErr(response.ErrProfileMissing, "")
			}
			return nil, upstreamErr("get profile", err)
		}
		if !profile.InCourse(courseID) {
			return nil, authErr(response.ErrNotInCourse, "")
		}
	}

	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, upstreamErr("list exams", err)
	}
	out := make([]model.ExamSummary, 0, len(exams))
	for i := range exams {
		out = append(out, exams[i].Summary())
	}
	return out, nil
}

// Cancel moves an exam from normal to canceled. The armed finisher still
// fires and refuses to grade.
func (s *ExamService) Cancel(ctx context.Context, id *Identity, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := statusConflict(exam.Status); err != nil {
		return nil, err
	}

	if err := s.exams.UpdateStatus(ctx, examID, model.ExamStatusNormal, model.ExamStatusCanceled); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, conflictErr(response.ErrConflict, "The exam changed state concurrently.")
		}
		return nil, upstreamErr("cancel exam", err)
	}
	exam.Status = model.ExamStatusCanceled
	exam.UpdatedAt = s.now().UTC()

	s.log.Info().Str("exam_id", examID.String()).Str("by", id.SubjectID).Msg("Exam canceled")
	publish(ctx, s.events, s.log, examID, websocket.MonitorEvent{
		Event:  websocket.EventCanceled,
		ExamID: examID,
		At:     exam.UpdatedAt,
	})
	return exam, nil
}

// Results lists every session of an exam with its grade.
func (s *ExamService) Results(ctx context.Context, examID uuid.UUID) ([]model.ExamResult, error) {
	if _, err := s.loadExam(ctx, examID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, upstreamErr("list sessions", err)
	}

	results := make([]model.ExamResult, 0, len(sessions))
	for _, sess := range sessions {
		results = append(results, model.ExamResult{
			SubjectID:    sess.SubjectID,
			Status:       sess.Status,
			Score:        sess.Score,
			CorrectCount: sess.CorrectCount,
			Passed:       sess.Passed,
			Answered:     len(sess.Answers),
			JoinedAt:     sess.JoinedAt,
			FinishedAt:   sess.FinishedAt,
		})
	}
	return results, nil
}

// statusConflict rejects any exam that is no longer in the normal state.
func statusConflict(status model.ExamStatus) error {
	switch status {
	case model.ExamStatusCanceled:
		return conflictErr(response.ErrExamCanceled, "")
	case model.ExamStatusFinished:
		return conflictErr(response.ErrExamFinished, "")
	}
	return nil
}

// publish sends a monitor event. Failures are logged, never returned.
func publish(ctx context.Context, pub EventPublisher, log zerolog.Logger, examID uuid.UUID, ev websocket.MonitorEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, examID, ev); err != nil {
		log.Warn().Err(err).
			Str("exam_id", examID.String()).
			Str("event", string(ev.Event)).
			Msg("Failed to publish monitor event")
	}
}
