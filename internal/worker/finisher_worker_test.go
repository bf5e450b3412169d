package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/service"
)

func TestRetryable(t *testing.T) {
	tok := service.NewTokenService(testTokenConfig())

	_, ticketErr := tok.VerifyFinisherTicket("garbage")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"upstream", &service.Error{Kind: service.KindUpstream}, true},
		{"invalid ticket", ticketErr, false},
		{"conflict", &service.Error{Kind: service.KindConflict}, false},
		{"not found", &service.Error{Kind: service.KindNotFound}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{5 * time.Second, 5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for attempt, w := range want {
		if got := Backoff(attempt); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func newTestWorker(q *memQueue, f *stubFinisher, now time.Time) *FinisherWorker {
	w := NewFinisherWorker(q, f, time.Second, zerolog.Nop())
	w.now = func() time.Time { return now }
	return w
}

func TestDrainRunsDueJobOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q := newMemQueue()
	fin := &stubFinisher{}
	ctx := context.Background()
	_ = q.Schedule(ctx, now.Add(-time.Second), model.FinisherJob{ExamID: "due", Ticket: "t-due"})
	_ = q.Schedule(ctx, now.Add(time.Hour), model.FinisherJob{ExamID: "later", Ticket: "t-later"})

	w := newTestWorker(q, fin, now)
	w.drain(ctx)
	w.drain(ctx)

	if calls := fin.calls(); len(calls) != 1 || calls[0] != "t-due" {
		t.Fatalf("finisher calls = %v, want [t-due]", calls)
	}
	jobs := q.jobs()
	if len(jobs) != 1 || jobs[0].job.ExamID != "later" {
		t.Errorf("queue = %+v, want only the later job", jobs)
	}
	if len(q.failed) != 0 {
		t.Errorf("dead letters = %+v", q.failed)
	}
}

func TestDrainReschedulesUpstreamFailure(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q := newMemQueue()
	fin := &stubFinisher{err: &service.Error{Kind: service.KindUpstream, Message: "db down"}}
	ctx := context.Background()
	_ = q.Schedule(ctx, now, model.FinisherJob{ExamID: "e1", Ticket: "t1"})

	newTestWorker(q, fin, now).drain(ctx)

	jobs := q.jobs()
	if len(jobs) != 1 {
		t.Fatalf("queue = %+v, want one rescheduled job", jobs)
	}
	if jobs[0].job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", jobs[0].job.Attempts)
	}
	if want := now.Add(Backoff(1)).Unix(); jobs[0].fireAt != want {
		t.Errorf("fire at %d, want %d", jobs[0].fireAt, want)
	}
	if len(fin.calls()) != 1 {
		t.Errorf("finisher ran %d times before the backoff elapsed", len(fin.calls()))
	}
}

func TestDrainDeadLettersPermanentFailure(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	tests := []struct {
		name string
		job  model.FinisherJob
		err  error
	}{
		{"canceled exam", model.FinisherJob{ExamID: "e1", Ticket: "t1"}, &service.Error{Kind: service.KindConflict, Message: "canceled"}},
		{"attempts exhausted", model.FinisherJob{ExamID: "e2", Ticket: "t2", Attempts: FinisherMaxAttempts - 1}, errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newMemQueue()
			_ = q.Schedule(ctx, now, tt.job)

			newTestWorker(q, &stubFinisher{err: tt.err}, now).drain(ctx)

			if jobs := q.jobs(); len(jobs) != 0 {
				t.Errorf("queue = %+v, want empty", jobs)
			}
			if len(q.failed) != 1 {
				t.Fatalf("dead letters = %d, want 1", len(q.failed))
			}
			got := q.failed[0]
			if got.Job.ExamID != tt.job.ExamID || got.Job.Attempts != tt.job.Attempts+1 || got.Error != tt.err.Error() {
				t.Errorf("dead letter = %+v", got)
			}
			if !got.FailedAt.Equal(now) {
				t.Errorf("failed at %v, want %v", got.FailedAt, now)
			}
		})
	}
}

func TestRunReArmsOnShutdown(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	q := newMemQueue()
	job := model.FinisherJob{ExamID: "e1", Ticket: "t1", Attempts: 2}
	raw, _ := json.Marshal(job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newTestWorker(q, &stubFinisher{}, now).run(ctx, string(raw))

	jobs := q.jobs()
	if len(jobs) != 1 {
		t.Fatalf("queue = %+v, want the job re-armed", jobs)
	}
	if jobs[0].job != job || jobs[0].fireAt != now.Unix() {
		t.Errorf("re-armed %+v at %d, want %+v at %d", jobs[0].job, jobs[0].fireAt, job, now.Unix())
	}
	if len(q.failed) != 0 {
		t.Errorf("dead letters = %+v", q.failed)
	}
}

func TestRunDeadLettersMalformedPayload(t *testing.T) {
	q := newMemQueue()
	fin := &stubFinisher{}
	newTestWorker(q, fin, time.Now()).run(context.Background(), "{not json")

	if len(fin.calls()) != 0 {
		t.Error("finisher ran for a malformed job")
	}
	if len(q.failed) != 1 {
		t.Errorf("dead letters = %d, want 1", len(q.failed))
	}
}
