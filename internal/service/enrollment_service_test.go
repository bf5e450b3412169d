package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/websocket"
)

func randomizedRequest(start time.Time) *model.CreateExamRequest {
	req := scenarioRequest(start)
	req.IsQuestionsRandomized = true
	req.IsOptionsRandomized = true
	for i := 3; i <= 6; i++ {
		req.Questions = append(req.Questions, model.QuestionInput{
			QuestionText: "Q" + string(rune('0'+i)), Points: 1,
			Options: []model.OptionInput{
				{OptionText: "x" + string(rune('0'+i)), IsCorrect: true},
				{OptionText: "y" + string(rune('0'+i))},
				{OptionText: "z" + string(rune('0'+i))},
			},
		})
	}
	return req
}

func order(questions []model.CandidateQuestion) []string {
	var out []string
	for _, q := range questions {
		out = append(out, q.ID)
		for _, o := range q.Options {
			out = append(out, "  "+o.ID)
		}
	}
	return out
}

func sameOrder(a, b []model.CandidateQuestion) bool {
	oa, ob := order(a), order(b)
	if len(oa) != len(ob) {
		return false
	}
	for i := range oa {
		if oa[i] != ob[i] {
			return false
		}
	}
	return true
}

func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func TestJoinTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, randomizedRequest(t0.Add(time.Minute)))
	f.now = t0.Add(5 * time.Minute)
	s1 := f.student("s1", "cs101")

	first, err := f.enroll.Join(ctx, s1, exam.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if first.AlreadyJoined {
		t.Error("first join reported already joined")
	}

	second, err := f.enroll.Join(ctx, s1, exam.ID)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if !second.AlreadyJoined {
		t.Error("second join did not report already joined")
	}
	if second.Token != first.Token {
		t.Error("rejoin returned a different token")
	}
	if !sameOrder(first.Questions, second.Questions) {
		t.Errorf("rejoin order differs:\n%v\n%v", order(first.Questions), order(second.Questions))
	}
	if n := len(f.events.Of(websocket.EventJoined)); n != 1 {
		t.Errorf("published %d join events, want 1", n)
	}
}

func TestJoinStripsCorrectMarkers(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Minute)))
	f.now = t0.Add(2 * time.Minute)

	res, err := f.enroll.Join(context.Background(), f.student("s1", "cs101"), exam.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	raw, _ := json.Marshal(res)
	if strings.Contains(string(raw), "correct") {
		t.Errorf("join result leaks answer markers: %s", raw)
	}
	if len(res.Questions) != 2 || len(res.Questions[0].Options) != 2 {
		t.Errorf("questions = %+v", res.Questions)
	}
	if res.Exam.ID != exam.ID || !res.ExpiresAt.Equal(exam.EndTime) {
		t.Errorf("result = %+v", res)
	}

	claims, err := f.tokens.VerifyExamToken(res.Token)
	if err != nil {
		t.Fatalf("exam token does not verify: %v", err)
	}
	if claims.Subject != "s1" || claims.ExamID != exam.ID.String() || claims.CourseID != "cs101" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestSecondCandidateGetsIndependentOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, randomizedRequest(t0.Add(time.Minute)))
	f.now = t0.Add(5 * time.Minute)

	f.enroll.shuffle = reverseShuffle
	a, err := f.enroll.Join(ctx, f.student("a", "cs101"), exam.ID)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}

	f.enroll.shuffle = func(int, func(i, j int)) {}
	b, err := f.enroll.Join(ctx, f.student("b", "cs101"), exam.ID)
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if sameOrder(a.Questions, b.Questions) {
		t.Fatal("candidates received the same order")
	}
	if a.Token == b.Token {
		t.Error("candidates share a token")
	}

	// a's order is persisted, not re-derived from the current shuffler.
	again, err := f.enroll.Join(ctx, &Identity{SubjectID: "a", Role: model.RoleStudent}, exam.ID)
	if err != nil {
		t.Fatalf("rejoin a: %v", err)
	}
	if !sameOrder(a.Questions, again.Questions) {
		t.Error("rejoin did not replay the stored order")
	}
}

func TestJoinRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Hour)))
	canceled := f.createExam(t, scenarioRequest(t0.Add(time.Hour)))
	if _, err := f.examSvc.Cancel(ctx, teacher(), canceled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	member := f.student("s1", "cs101")
	outsider := f.student("s2", "math201")

	tests := []struct {
		name    string
		id      *Identity
		examID  uuid.UUID
		now     time.Time
		kind    Kind
		message string
	}{
		{"no profile", &Identity{SubjectID: "ghost", Role: model.RoleStudent}, exam.ID, t0.Add(90 * time.Minute), KindNotFound, ""},
		{"no exam", member, uuid.New(), t0.Add(90 * time.Minute), KindNotFound, ""},
		{"not in course", outsider, exam.ID, t0.Add(90 * time.Minute), KindAuth, ""},
		{"before start", member, exam.ID, t0, KindConflict, "Mon, 02 Mar 2026 10:00:00 UTC"},
		{"at end", member, exam.ID, t0.Add(2 * time.Hour), KindConflict, "Mon, 02 Mar 2026 11:00:00 UTC"},
		{"canceled", member, canceled.ID, t0.Add(90 * time.Minute), KindConflict, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = tt.now
			_, err := f.enroll.Join(ctx, tt.id, tt.examID)
			se := wantKind(t, err, tt.kind)
			if tt.message != "" && !strings.Contains(se.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", se.Message, tt.message)
			}
		})
	}
}

func TestStaffJoinBypassesCourseMembership(t *testing.T) {
	f := newFixture(t)
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Minute)))
	f.now = t0.Add(2 * time.Minute)
	if _, err := f.enroll.Join(context.Background(), teacher(), exam.ID); err != nil {
		t.Fatalf("teacher join: %v", err)
	}
}

// racingSessions hides existing sessions from the first lookup, as if a
// concurrent join stored its session between the lookup and the insert.
type racingSessions struct {
	SessionStore
	hidden atomic.Bool
}

func (r *racingSessions) GetByExamAndSubject(ctx context.Context, examID uuid.UUID, subjectID string) (*model.ExamSession, error) {
	if r.hidden.CompareAndSwap(false, true) {
		return nil, repository.ErrNotFound
	}
	return r.SessionStore.GetByExamAndSubject(ctx, examID, subjectID)
}

func TestConcurrentJoinResolvesToStoredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Minute)))
	f.now = t0.Add(2 * time.Minute)
	s1 := f.student("s1", "cs101")

	winner, err := f.enroll.Join(ctx, s1, exam.ID)
	if err != nil {
		t.Fatalf("winning join: %v", err)
	}

	racing := &racingSessions{SessionStore: f.sessions}
	enroll := NewEnrollmentService(f.exams, racing, f.profiles, f.blobs, nil, f.tokens, zerolog.New(io.Discard))
	enroll.now = f.enroll.now

	loser, err := enroll.Join(ctx, s1, exam.ID)
	if err != nil {
		t.Fatalf("losing join: %v", err)
	}
	if !loser.AlreadyJoined || loser.Token != winner.Token {
		t.Errorf("losing join = {already %v, same token %v}", loser.AlreadyJoined, loser.Token == winner.Token)
	}
}

func TestMyExams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Minute)))
	f.now = t0.Add(2 * time.Minute)
	s1 := f.student("s1", "cs101")

	if _, err := f.enroll.Join(ctx, s1, exam.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	active, err := f.enroll.MyExams(ctx, s1, model.MyExamsActive)
	if err != nil {
		t.Fatalf("my exams: %v", err)
	}
	if len(active) != 1 || active[0].ExamID != exam.ID || active[0].Name != "Scenario" {
		t.Fatalf("active = %+v", active)
	}
	finished, _ := f.enroll.MyExams(ctx, s1, model.MyExamsFinished)
	if len(finished) != 0 {
		t.Errorf("finished = %+v, want none", finished)
	}

	f.now = exam.EndTime.Add(time.Minute)
	if _, err := f.finisher.Finish(ctx, f.ticket(t, exam.ID)); err != nil {
		t.Fatalf("finish: %v", err)
	}

	finished, _ = f.enroll.MyExams(ctx, s1, model.MyExamsFinished)
	if len(finished) != 1 {
		t.Fatalf("finished = %+v, want one", finished)
	}
	got := finished[0]
	if got.Name != "Scenario" || got.Passed == nil || *got.Passed || got.Score == nil || *got.Score != 0 {
		t.Errorf("finished summary = %+v", got)
	}
}

func TestMyExamsMovesCanceledExamOutOfActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.createExam(t, scenarioRequest(t0.Add(time.Minute)))
	f.now = t0.Add(2 * time.Minute)
	s1 := f.student("s1", "cs101")
	if _, err := f.enroll.Join(ctx, s1, exam.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.examSvc.Cancel(ctx, teacher(), exam.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	active, err := f.enroll.MyExams(ctx, s1, model.MyExamsActive)
	if err != nil {
		t.Fatalf("my exams: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %+v, want none", active)
	}
	over, _ := f.enroll.MyExams(ctx, s1, model.MyExamsFinished)
	if len(over) != 1 || over[0].ExamStatus != model.ExamStatusCanceled || over[0].Score != nil {
		t.Errorf("finished = %+v, want the canceled exam without a verdict", over)
	}
}
