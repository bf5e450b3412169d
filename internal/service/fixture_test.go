package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/storetest"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	exams    *storetest.Exams
	sessions *storetest.Sessions
	profiles *storetest.Profiles
	blobs    *storetest.Blobs
	sched    *storetest.Scheduler
	events   *storetest.Events

	cfg        *config.Config
	tokens     *TokenService
	examSvc    *ExamService
	enroll     *EnrollmentService
	submission *SubmissionService
	finisher   *FinisherService

	now time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:   "access-secret",
		ExamTokenSecret:     "exam-secret",
		FinisherTokenSecret: "finisher-secret",
		ExamTokenLeeway:     30 * time.Second,
		FinisherDelay:       time.Minute,
		FinisherGrace:       15 * time.Minute,
		FinisherConcurrency: 4,
		Courses: []model.Course{
			{ID: "cs101", Label: "Introduction to Computer Science"},
			{ID: "math201", Label: "Linear Algebra"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		exams:    storetest.NewExams(),
		sessions: storetest.NewSessions(),
		profiles: storetest.NewProfiles(),
		blobs:    storetest.NewBlobs(),
		sched:    &storetest.Scheduler{},
		events:   &storetest.Events{},
		cfg:      testConfig(),
		now:      t0,
	}
	clock := func() time.Time { return f.now }
	log := zerolog.New(io.Discard)

	f.tokens = NewTokenService(f.cfg)
	f.tokens.now = clock

	f.examSvc = NewExamService(ExamServiceDeps{
		Exams:     f.exams,
		Sessions:  f.sessions,
		Profiles:  f.profiles,
		Blobs:     f.blobs,
		Scheduler: f.sched,
		Events:    f.events,
		Tokens:    f.tokens,
		Catalog:   NewCourseCatalog(f.cfg.Courses),
	}, f.cfg, log)
	f.examSvc.now = clock

	f.enroll = NewEnrollmentService(f.exams, f.sessions, f.profiles, f.blobs, f.events, f.tokens, log)
	f.enroll.now = clock

	f.submission = NewSubmissionService(f.exams, f.sessions, f.events, log)

	f.finisher = NewFinisherService(f.exams, f.sessions, f.profiles, f.blobs, f.events, f.tokens, f.cfg.FinisherConcurrency, log)
	f.finisher.now = clock

	f.profiles.Put(model.Profile{SubjectID: "teacher-1", Role: model.RoleTeacher})
	return f
}

func teacher() *Identity { return &Identity{SubjectID: "teacher-1", Role: model.RoleTeacher} }

func (f *fixture) student(id string, courses ...string) *Identity {
	f.profiles.Put(model.Profile{SubjectID: id, Role: model.RoleStudent, Courses: courses})
	return &Identity{SubjectID: id, Role: model.RoleStudent}
}

// scenarioRequest is two questions: Q1 (A correct, 10 pts) and Q2 (C correct, 5 pts).
func scenarioRequest(start time.Time) *model.CreateExamRequest {
	return &model.CreateExamRequest{
		Name:                "Scenario",
		CourseID:            "cs101",
		MinimumPassingScore: 10,
		StartDate:           start.Unix(),
		Duration:            60,
		Questions: []model.QuestionInput{
			{QuestionText: "Q1", Points: 10, Options: []model.OptionInput{
				{OptionText: "A", IsCorrect: true}, {OptionText: "B"},
			}},
			{QuestionText: "Q2", Points: 5, Options: []model.OptionInput{
				{OptionText: "C", IsCorrect: true}, {OptionText: "D"},
			}},
		},
	}
}

func (f *fixture) createExam(t *testing.T, req *model.CreateExamRequest) *model.Exam {
	t.Helper()
	exam, err := f.examSvc.Create(context.Background(), teacher(), req)
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return exam
}

func (f *fixture) ticket(t *testing.T, examID uuid.UUID) string {
	t.Helper()
	for _, j := range f.sched.Jobs() {
		if j.Job.ExamID == examID.String() {
			return j.Job.Ticket
		}
	}
	t.Fatalf("no finisher job for exam %s", examID)
	return ""
}

// ids maps question text and option text to generated ids for the joined view.
func ids(questions []model.CandidateQuestion) (map[string]string, map[string]string) {
	qs := map[string]string{}
	opts := map[string]string{}
	for _, q := range questions {
		qs[q.Text] = q.ID
		for _, o := range q.Options {
			opts[o.Text] = o.ID
		}
	}
	return qs, opts
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	se, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want service error of kind %s", err, kind)
	}
	if se.Kind != kind {
		t.Fatalf("kind = %s (%s), want %s", se.Kind, se.Message, kind)
	}
	return se
}
