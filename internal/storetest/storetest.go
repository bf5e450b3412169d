// Package storetest provides in-memory implementations of the service
// collaborators for tests.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examinator/internal/blob"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/websocket"
)

// clone deep-copies v through JSON so callers never share state with the store.
func clone[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

// ─── Exams ──────────────────────────────────────────────────────────

// Exams is an in-memory exam store.
type Exams struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Exam
	Err  error // returned by every call when set
}

func NewExams() *Exams { return &Exams{byID: map[uuid.UUID]model.Exam{}} }

func (s *Exams) Create(_ context.Context, e *model.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.byID[e.ID]; ok {
		return repository.ErrAlreadyExists
	}
	s.byID[e.ID] = clone(*e)
	return nil
}

func (s *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	e, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clone(e)
	return &out, nil
}

func (s *Exams) ListByCourse(_ context.Context, courseID string) ([]model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []model.Exam{}
	for _, e := range s.byID {
		if e.CourseID == courseID {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Exams) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.ExamStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	e, ok := s.byID[id]
	if !ok || e.Status != from {
		return repository.ErrConditionFailed
	}
	e.Status = to
	s.byID[id] = e
	return nil
}

// Put stores e directly, bypassing validation.
func (s *Exams) Put(e model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[e.ID] = clone(e)
}

// Len reports how many exams are stored.
func (s *Exams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// ─── Sessions ───────────────────────────────────────────────────────

type sessionKey struct {
	examID    uuid.UUID
	subjectID string
}

// Sessions is an in-memory session store.
type Sessions struct {
	mu   sync.Mutex
	rows map[sessionKey]model.ExamSession
	// CompleteCalls counts Complete invocations.
	CompleteCalls int
}

func NewSessions() *Sessions { return &Sessions{rows: map[sessionKey]model.ExamSession{}} }

func (s *Sessions) Create(_ context.Context, sess *model.ExamSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{sess.ExamID, sess.SubjectID}
	if _, ok := s.rows[k]; ok {
		return repository.ErrAlreadyExists
	}
	s.rows[k] = clone(*sess)
	return nil
}

func (s *Sessions) GetByExamAndSubject(_ context.Context, examID uuid.UUID, subjectID string) (*model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.rows[sessionKey{examID, subjectID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clone(sess)
	if out.Answers == nil {
		out.Answers = map[string]string{}
	}
	return &out, nil
}

func (s *Sessions) SetAnswer(_ context.Context, examID uuid.UUID, subjectID, questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{examID, subjectID}
	sess, ok := s.rows[k]
	if !ok {
		return repository.ErrNotFound
	}
	if sess.Answers == nil {
		sess.Answers = map[string]string{}
	}
	sess.Answers[questionID] = optionID
	s.rows[k] = sess
	return nil
}

func (s *Sessions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ExamSession{}
	for k, sess := range s.rows {
		if k.examID == examID {
			out = append(out, clone(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (s *Sessions) Complete(_ context.Context, examID uuid.UUID, subjectID string, g model.GradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompleteCalls++
	k := sessionKey{examID, subjectID}
	sess, ok := s.rows[k]
	if !ok {
		return repository.ErrNotFound
	}
	finished := g.FinishedAt
	sess.Status = model.SessionStatusFinished
	sess.Score = g.Score
	sess.CorrectCount = g.CorrectCount
	sess.Passed = g.Passed
	sess.FinishedAt = &finished
	s.rows[k] = sess
	return nil
}

// ─── Profiles ───────────────────────────────────────────────────────

// Profiles is an in-memory profile store.
type Profiles struct {
	mu   sync.Mutex
	byID map[string]model.Profile
}

func NewProfiles() *Profiles { return &Profiles{byID: map[string]model.Profile{}} }

// Put stores p, replacing any existing profile.
func (s *Profiles) Put(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Exams == nil {
		p.Exams = map[string]model.ProfileExam{}
	}
	s.byID[p.SubjectID] = clone(p)
}

func (s *Profiles) GetByID(_ context.Context, subjectID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[subjectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clone(p)
	if out.Exams == nil {
		out.Exams = map[string]model.ProfileExam{}
	}
	return &out, nil
}

func (s *Profiles) PutExamSummary(_ context.Context, subjectID string, summary model.ProfileExam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[subjectID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Exams == nil {
		p.Exams = map[string]model.ProfileExam{}
	}
	p.Exams[summary.ExamID.String()] = summary
	s.byID[subjectID] = p
	return nil
}

func (s *Profiles) FinishExamSummary(_ context.Context, subjectID string, examID uuid.UUID, v model.ExamVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[subjectID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Exams == nil {
		p.Exams = map[string]model.ProfileExam{}
	}
	e := p.Exams[examID.String()]
	e.ExamID = examID
	e.Status = v.Status
	passed, score, correct, at := v.Passed, v.Score, v.CorrectCount, v.FinishedAt
	e.Passed, e.Score, e.CorrectCount, e.FinishedAt = &passed, &score, &correct, &at
	p.Exams[examID.String()] = e
	s.byID[subjectID] = p
	return nil
}

// ─── Blobs ──────────────────────────────────────────────────────────

// Blobs is an in-memory write-once blob store.
type Blobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewBlobs() *Blobs { return &Blobs{data: map[string][]byte{}} }

func (s *Blobs) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return blob.ErrExists
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *Blobs) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete removes a blob, for simulating lost content.
func (s *Blobs) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// ─── Scheduler ──────────────────────────────────────────────────────

// ScheduledJob is one armed job.
type ScheduledJob struct {
	FireAt time.Time
	Job    model.FinisherJob
}

// Scheduler records armed jobs.
type Scheduler struct {
	mu   sync.Mutex
	jobs []ScheduledJob
	Err  error
}

func (s *Scheduler) Schedule(_ context.Context, fireAt time.Time, job model.FinisherJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.jobs = append(s.jobs, ScheduledJob{FireAt: fireAt, Job: job})
	return nil
}

// Jobs returns a copy of the armed jobs.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScheduledJob(nil), s.jobs...)
}

// ─── Events ─────────────────────────────────────────────────────────

// Events records published monitor events.
type Events struct {
	mu     sync.Mutex
	events []websocket.MonitorEvent
}

func (s *Events) Publish(_ context.Context, _ uuid.UUID, ev websocket.MonitorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Of returns the recorded events of the given type.
func (s *Events) Of(kind websocket.Event) []websocket.MonitorEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []websocket.MonitorEvent
	for _, ev := range s.events {
		if ev.Event == kind {
			out = append(out, ev)
		}
	}
	return out
}

// ErrInjected is a stock failure for fault-injection tests.
var ErrInjected = errors.New("injected failure")
