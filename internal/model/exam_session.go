package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusFinished   SessionStatus = "finished"
)

// ExamSession is one candidate's enrollment, running answers and grade for one exam.
type ExamSession struct {
	ExamID    uuid.UUID `json:"exam_id"`
	SubjectID string    `json:"subject_id"`
	CourseID  string    `json:"course_id"`
	Token     string    `json:"token"`
	// Answers maps question id to the chosen option id.
	Answers map[string]string `json:"answers"`
	// QuestionOrder and OptionOrder record the order first shown to the
	// candidate so a rejoin reproduces it exactly.
	QuestionOrder []string            `json:"question_order"`
	OptionOrder   map[string][]string `json:"option_order"`
	Score         int                 `json:"score"`
	CorrectCount  int                 `json:"correct_count"`
	Passed        bool                `json:"passed"`
	Status        SessionStatus       `json:"status"`
	JoinedAt      time.Time           `json:"joined_at"`
	FinishedAt    *time.Time          `json:"finished_at,omitempty"`
}

// GradeResult is the finisher's verdict for one session.
type GradeResult struct {
	Score        int       `json:"score"`
	CorrectCount int       `json:"correct_count"`
	Passed       bool      `json:"passed"`
	FinishedAt   time.Time `json:"finished_at"`
}

// JoinResult is returned to a candidate joining (or rejoining) an exam.
type JoinResult struct {
	Token         string              `json:"token"`
	AlreadyJoined bool                `json:"already_joined"`
	Exam          ExamSummary         `json:"exam"`
	Questions     []CandidateQuestion `json:"questions"`
	Answers       map[string]string   `json:"answers"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// SubmitAnswerRequest is the payload for recording one answer.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	OptionID   string `json:"option_id" binding:"required,max=64"`
}

// SubmitAnswerResult acknowledges a recorded answer without revealing correctness.
type SubmitAnswerResult struct {
	ExamID     uuid.UUID `json:"exam_id"`
	QuestionID string    `json:"question_id"`
	Saved      bool      `json:"saved"`
}
