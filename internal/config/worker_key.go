package config

type WorkerKeyStruct struct {
	// FinisherSchedule is a sorted set of finisher jobs scored by fire time (unix seconds).
	FinisherSchedule string
	// FinisherFailedQueue collects jobs whose grading run failed, for inspection.
	FinisherFailedQueue string
}

var WorkerKey = &WorkerKeyStruct{
	FinisherSchedule:    "finisher_schedule",
	FinisherFailedQueue: "finisher_failed_queue",
}
