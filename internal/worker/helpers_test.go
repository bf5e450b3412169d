package worker

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
)

func testTokenConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:   "access",
		ExamTokenSecret:     "exam",
		FinisherTokenSecret: "finisher",
	}
}

// memQueue is an in-memory JobQueue with sorted-set semantics.
type memQueue struct {
	mu     sync.Mutex
	scores map[string]int64
	failed []model.FailedFinisherJob
}

func newMemQueue() *memQueue { return &memQueue{scores: map[string]int64{}} }

func (q *memQueue) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for m, score := range q.scores {
		if score <= now.Unix() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return q.scores[out[i]] < q.scores[out[j]] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueue) Claim(_ context.Context, member string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.scores[member]; !ok {
		return false, nil
	}
	delete(q.scores, member)
	return true, nil
}

func (q *memQueue) Schedule(_ context.Context, fireAt time.Time, job model.FinisherJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scores[string(raw)] = fireAt.Unix()
	return nil
}

func (q *memQueue) DeadLetter(_ context.Context, failed model.FailedFinisherJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, failed)
	return nil
}

type queued struct {
	job    model.FinisherJob
	fireAt int64
}

func (q *memQueue) jobs() []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queued
	for m, score := range q.scores {
		var job model.FinisherJob
		_ = json.Unmarshal([]byte(m), &job)
		out = append(out, queued{job: job, fireAt: score})
	}
	return out
}

// stubFinisher records tickets and answers with err, or with the context's
// error when the context is already done.
type stubFinisher struct {
	mu      sync.Mutex
	tickets []string
	err     error
}

func (f *stubFinisher) Finish(ctx context.Context, ticket string) (*model.FinishReport, error) {
	f.mu.Lock()
	f.tickets = append(f.tickets, ticket)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.FinishReport{Graded: 1}, nil
}

func (f *stubFinisher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tickets...)
}
