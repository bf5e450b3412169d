package websocket

import (
	"time"

	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing     Action = "ping"
	ActionSnapshot Action = "snapshot"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventPong     Event = "pong"
	EventSnapshot Event = "snapshot"

	// Monitor events, published on the exam's Pub/Sub channel.
	EventJoined   Event = "joined"
	EventAnswered Event = "answered"
	EventCanceled Event = "canceled"
	EventGraded   Event = "graded"
)

// MonitorEvent is one lifecycle event of an exam as seen by a live monitor.
// Option ids are never included so a monitor cannot reconstruct answers.
type MonitorEvent struct {
	Event      Event     `json:"event"`
	ExamID     uuid.UUID `json:"exam_id"`
	SubjectID  string    `json:"subject_id,omitempty"`
	QuestionID string    `json:"question_id,omitempty"`
	Graded     int       `json:"graded,omitempty"`
	Passed     int       `json:"passed,omitempty"`
	At         time.Time `json:"at"`
}

// CandidateProgress is one row of a monitor snapshot.
type CandidateProgress struct {
	SubjectID string    `json:"subject_id"`
	Status    string    `json:"status"`
	Answered  int       `json:"answered"`
	JoinedAt  time.Time `json:"joined_at"`
}

// SnapshotResponse is sent on connect and on request.
type SnapshotResponse struct {
	Event      Event               `json:"event"`
	ExamID     uuid.UUID           `json:"exam_id"`
	Status     string              `json:"status"`
	Total      int                 `json:"total_questions"`
	Candidates []CandidateProgress `json:"candidates"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
