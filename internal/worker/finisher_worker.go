package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/service"
)

const (
	FinisherBatchSize   = 20
	FinisherMaxAttempts = 5
	FinisherBaseBackoff = 5 * time.Second
	FinisherJobTimeout  = 2 * time.Minute
	bookkeepingTimeout  = 5 * time.Second
)

// Finisher runs one grading pass for a ticket.
type Finisher interface {
	Finish(ctx context.Context, ticket string) (*model.FinishReport, error)
}

// FinisherWorker polls the schedule for due jobs and runs the finisher.
// Each job is claimed before it runs so that only one replica runs it.
type FinisherWorker struct {
	queue    JobQueue
	finisher Finisher
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewFinisherWorker creates a new FinisherWorker polling every interval.
func NewFinisherWorker(queue JobQueue, finisher Finisher, interval time.Duration, log zerolog.Logger) *FinisherWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &FinisherWorker{
		queue:    queue,
		finisher: finisher,
		interval: interval,
		log:      log.With().Str("component", "finisher_worker").Logger(),
		now:      time.Now,
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

// Start blocks until ctx is canceled.
func (w *FinisherWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("FinisherWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("FinisherWorker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain runs every due job, a batch at a time.
func (w *FinisherWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		due, err := w.queue.Due(ctx, w.now(), FinisherBatchSize)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Due jobs lookup failed")
			}
			return
		}
		if len(due) == 0 {
			return
		}

		for _, member := range due {
			claimed, err := w.queue.Claim(ctx, member)
			if err != nil {
				w.log.Error().Err(err).Msg("Job claim failed")
				return
			}
			if !claimed {
				continue // another replica took it
			}
			w.run(ctx, member)
		}
	}
}

func (w *FinisherWorker) run(ctx context.Context, member string) {
	var job model.FinisherJob
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid finisher job payload")
		w.deadLetter(ctx, model.FinisherJob{}, err)
		return
	}

	log := w.log.With().Str("exam_id", job.ExamID).Int("attempt", job.Attempts+1).Logger()

	jobCtx, cancel := context.WithTimeout(ctx, FinisherJobTimeout)
	report, err := w.finisher.Finish(jobCtx, job.Ticket)
	cancel()

	if err == nil {
		log.Info().
			Int("graded", report.Graded).
			Int("passed", report.Passed).
			Int("failed", report.Failed).
			Msg("Finisher run complete")
		return
	}

	// The claim already removed the job, so bookkeeping must outlive shutdown.
	bk, bkCancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer bkCancel()

	if ctx.Err() != nil {
		log.Warn().Err(err).Msg("Finisher run interrupted by shutdown, re-arming")
		if err := w.queue.Schedule(bk, w.now(), job); err != nil {
			w.deadLetter(bk, job, err)
		}
		return
	}

	job.Attempts++
	if Retryable(err) && job.Attempts < FinisherMaxAttempts {
		delay := Backoff(job.Attempts)
		log.Warn().Err(err).Dur("retry_in", delay).Msg("Finisher run failed, rescheduling")
		if err := w.queue.Schedule(bk, w.now().Add(delay), job); err != nil {
			log.Error().Err(err).Msg("Reschedule failed")
			w.deadLetter(bk, job, err)
		}
		return
	}

	log.Error().Err(err).Msg("Finisher run dropped")
	w.deadLetter(bk, job, err)
}

func (w *FinisherWorker) deadLetter(ctx context.Context, job model.FinisherJob, cause error) {
	failed := model.FailedFinisherJob{
		Job:      job,
		Error:    cause.Error(),
		FailedAt: w.now().UTC(),
	}
	if err := w.queue.DeadLetter(ctx, failed); err != nil {
		w.log.Error().Err(err).Str("exam_id", job.ExamID).Msg("Dead-letter push failed")
	}
}

// ----------------------------------------------------------------
// Retry policy
// ----------------------------------------------------------------

// Retryable reports whether a failed run may succeed later. Only upstream
// failures are transient; a bad ticket or a canceled exam never heals.
func Retryable(err error) bool {
	if _, ok := service.AsError(err); !ok {
		return true
	}
	return service.IsKind(err, service.KindUpstream)
}

// Backoff doubles the base delay per attempt.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return FinisherBaseBackoff << (attempt - 1)
}
