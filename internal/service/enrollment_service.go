package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
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

// EnrollmentService handles candidates joining exams and listing their exams.
type EnrollmentService struct {
	exams    ExamStore
	sessions SessionStore
	profiles ProfileStore
	blobs    blob.Store
	events   EventPublisher
	tokens   *TokenService
	log      zerolog.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewEnrollmentService creates a new EnrollmentService.
func NewEnrollmentService(
	exams ExamStore,
	sessions SessionStore,
	profiles ProfileStore,
	blobs blob.Store,
	events EventPublisher,
	tokens *TokenService,
	log zerolog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		exams:    exams,
		sessions: sessions,
		profiles: profiles,
		blobs:    blobs,
		events:   events,
		tokens:   tokens,
		log:      log.With().Str("component", "enrollment_service").Logger(),
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// Join enrolls the caller in an exam, or returns the existing enrollment
// unchanged. The question and option order shown on first join is stored
// and reproduced on every rejoin.
func (s *EnrollmentService) Join(ctx context.Context, id *Identity, examID uuid.UUID) (*model.JoinResult, error) {
	profile, err := s.profiles.GetByID(ctx, id.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrProfileMissing, "")
		}
		return nil, upstreamErr("get profile", err)
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrExamNotFound, "")
		}
		return nil, upstreamErr("get exam", err)
	}

	if !id.Role.IsStaff() && !profile.InCourse(exam.CourseID) {
		return nil, authErr(response.ErrNotInCourse, "")
	}

	now := s.now().UTC()
	if now.Before(exam.StartTime) {
		return nil, conflictErr(response.ErrExamNotStarted,
			fmt.Sprintf("The exam starts at %s.", exam.StartTime.UTC().Format(time.RFC1123)))
	}
	if !now.Before(exam.EndTime) {
		return nil, conflictErr(response.ErrExamEnded,
			fmt.Sprintf("The exam ended at %s.", exam.EndTime.UTC().Format(time.RFC1123)))
	}
	if err := statusConflict(exam.Status); err != nil {
		return nil, err
	}

	existing, err := s.sessions.GetByExamAndSubject(ctx, examID, id.SubjectID)
	switch {
	case err == nil:
		return s.rejoin(ctx, exam, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, upstreamErr("get session", err)
	}

	content, err := s.loadContent(ctx, exam)
	if err != nil {
		return nil, err
	}

	questions := candidateQuestions(content)
	if exam.IsQuestionsRandomized {
		s.shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
	}
	if exam.IsOptionsRandomized {
		for _, q := range questions {
			opts := q.Options
			s.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		}
	}

	token, err := s.tokens.IssueExamToken(examID, exam.CourseID, id.SubjectID, exam.EndTime)
	if err != nil {
		return nil, upstreamErr("issue exam token", err)
	}

	questionOrder, optionOrder := recordOrder(questions)
	session := &model.ExamSession{
		ExamID:        examID,
		SubjectID:     id.SubjectID,
		CourseID:      exam.CourseID,
		Token:         token,
		Answers:       map[string]string{},
		QuestionOrder: questionOrder,
		OptionOrder:   optionOrder,
		Status:        model.SessionStatusInProgress,
		JoinedAt:      now,
	}
	summary := model.ProfileExam{
		ExamID:      examID,
		Name:        exam.Name,
		CourseID:    exam.CourseID,
		CourseName:  exam.CourseName,
		StartTime:   exam.StartTime,
		EndTime:     exam.EndTime,
		TotalPoints: exam.TotalPoints,
		JoinedAt:    now,
		Status:      model.SessionStatusInProgress,
	}

	var lostRace bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.sessions.Create(gctx, session)
		if errors.Is(err, repository.ErrAlreadyExists) {
			lostRace = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.profiles.PutExamSummary(gctx, id.SubjectID, summary); err != nil {
			return fmt.Errorf("put profile summary: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, upstreamErr("join exam", err)
	}

	if lostRace {
		// A concurrent join for the same candidate stored its session first.
		stored, err := s.sessions.GetByExamAndSubject(ctx, examID, id.SubjectID)
		if err != nil {
			return nil, upstreamErr("get concurrent session", err)
		}
		return s.buildResult(exam, content, stored, true), nil
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("subject_id", id.SubjectID).
		Msg("Candidate joined exam")
	publish(ctx, s.events, s.log, examID, websocket.MonitorEvent{
		Event:     websocket.EventJoined,
		ExamID:    examID,
		SubjectID: id.SubjectID,
		At:        now,
	})

	return &model.JoinResult{
		Token:     token,
		Exam:      exam.Summary(),
		Questions: questions,
		Answers:   map[string]string{},
		ExpiresAt: exam.EndTime,
	}, nil
}

func (s *EnrollmentService) rejoin(ctx context.Context, exam *model.Exam, sess *model.ExamSession) (*model.JoinResult, error) {
	content, err := s.loadContent(ctx, exam)
	if err != nil {
		return nil, err
	}
	return s.buildResult(exam, content, sess, true), nil
}

func (s *EnrollmentService) buildResult(exam *model.Exam, content *model.ExamContent, sess *model.ExamSession, already bool) *model.JoinResult {
	answers := sess.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return &model.JoinResult{
		Token:         sess.Token,
		AlreadyJoined: already,
		Exam:          exam.Summary(),
		Questions:     applyOrder(candidateQuestions(content), sess.QuestionOrder, sess.OptionOrder),
		Answers:       answers,
		ExpiresAt:     exam.EndTime,
	}
}

func (s *EnrollmentService) loadContent(ctx context.Context, exam *model.Exam) (*model.ExamContent, error) {
	var content model.ExamContent
	if err := blob.GetJSON(ctx, s.blobs, blob.ExamContentKey(exam.CourseID, exam.ID), &content); err != nil {
		return nil, upstreamErr("get exam content", err)
	}
	return &content, nil
}

// MyExams lists the caller's exam summaries, either still open or over.
func (s *EnrollmentService) MyExams(ctx context.Context, id *Identity, kind model.MyExamsKind) ([]model.ProfileExam, error) {
	profile, err := s.profiles.GetByID(ctx, id.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrProfileMissing, "")
		}
		return nil, upstreamErr("get profile", err)
	}

	out := make([]model.ProfileExam, 0, len(profile.Exams))
	for _, e := range profile.Exams {
		if e.Status == model.SessionStatusFinished {
			e.ExamStatus = model.ExamStatusFinished
		} else {
			// An ungraded summary does not say whether the exam was canceled.
			exam, err := s.exams.GetByID(ctx, e.ExamID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				continue
			case err != nil:
				return nil, upstreamErr("get exam", err)
			}
			e.ExamStatus = exam.Status
		}

		open := e.ExamStatus == model.ExamStatusNormal
		if open == (kind == model.MyExamsActive) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// candidateQuestions strips correct-answer markers. The result shares no
// slices with content.
func candidateQuestions(content *model.ExamContent) []model.CandidateQuestion {
	out := make([]model.CandidateQuestion, len(content.Questions))
	for i, q := range content.Questions {
		opts := make([]model.Option, len(q.Options))
		copy(opts, q.Options)
		out[i] = model.CandidateQuestion{ID: q.ID, Text: q.Text, Points: q.Points, Options: opts}
	}
	return out
}

func recordOrder(questions []model.CandidateQuestion) ([]string, map[string][]string) {
	questionOrder := make([]string, len(questions))
	optionOrder := make(map[string][]string, len(questions))
	for i, q := range questions {
		questionOrder[i] = q.ID
		ids := make([]string, len(q.Options))
		for j, o := range q.Options {
			ids[j] = o.ID
		}
		optionOrder[q.ID] = ids
	}
	return questionOrder, optionOrder
}

// applyOrder arranges questions and options as recorded. Entries missing from
// the recorded order keep their authored position after the ordered ones.
func applyOrder(questions []model.CandidateQuestion, questionOrder []string, optionOrder map[string][]string) []model.CandidateQuestion {
	byID := make(map[string]model.CandidateQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make([]model.CandidateQuestion, 0, len(questions))
	placed := make(map[string]bool, len(questions))
	for _, qid := range questionOrder {
		if q, ok := byID[qid]; ok && !placed[qid] {
			out = append(out, q)
			placed[qid] = true
		}
	}
	for _, q := range questions {
		if !placed[q.ID] {
			out = append(out, q)
		}
	}

	for i := range out {
		order, ok := optionOrder[out[i].ID]
		if !ok {
			continue
		}
		out[i].Options = orderOptions(out[i].Options, order)
	}
	return out
}

func orderOptions(options []model.Option, order []string) []model.Option {
	byID := make(map[string]model.Option, len(options))
	for _, o := range options {
		byID[o.ID] = o
	}
	out := make([]model.Option, 0, len(options))
	placed := make(map[string]bool, len(options))
	for _, oid := range order {
		if o, ok := byID[oid]; ok && !placed[oid] {
			out = append(out, o)
			placed[oid] = true
		}
	}
	for _, o := range options {
		if !placed[o.ID] {
			out = append(out, o)
		}
	}
	return out
}
