package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
// Transitions are monotonic: normal → finished, normal → canceled.
type ExamStatus string

const (
	ExamStatusNormal   ExamStatus = "normal"
	ExamStatusCanceled ExamStatus = "canceled"
	ExamStatusFinished ExamStatus = "finished"
)

// QuestionsMetaData maps a question id to the ids of its valid options.
// It never carries correct-answer markers.
type QuestionsMetaData map[string][]string

// HasOption reports whether optionID is a valid option of questionID.
func (m QuestionsMetaData) HasOption(questionID, optionID string) bool {
	options, ok := m[questionID]
	if !ok {
		return false
	}
	for _, o := range options {
		if o == optionID {
			return true
		}
	}
	return false
}

// Exam is the authoritative public exam record.
type Exam struct {
	ID                    uuid.UUID         `json:"id"`
	CourseID              string            `json:"course_id"`
	CourseName            string            `json:"course_name"`
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	MinimumPassingScore   int               `json:"minimum_passing_score"`
	TotalPoints           int               `json:"total_points"`
	DurationMinutes       int               `json:"duration_minutes"`
	StartTime             time.Time         `json:"start_time"`
	EndTime               time.Time         `json:"end_time"`
	Status                ExamStatus        `json:"status"`
	IsQuestionsRandomized bool              `json:"is_questions_randomized"`
	IsOptionsRandomized   bool              `json:"is_options_randomized"`
	QuestionsMetaData     QuestionsMetaData `json:"questions_meta_data"`
	CreatedBy             string            `json:"created_by"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// ExamSummary is the candidate-facing view of an exam, without the metadata index.
type ExamSummary struct {
	ID                  uuid.UUID  `json:"id"`
	CourseID            string     `json:"course_id"`
	CourseName          string     `json:"course_name"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	MinimumPassingScore int        `json:"minimum_passing_score"`
	TotalPoints         int        `json:"total_points"`
	DurationMinutes     int        `json:"duration_minutes"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             time.Time  `json:"end_time"`
	Status              ExamStatus `json:"status"`
}

// Summary returns the candidate-facing view of e.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:                  e.ID,
		CourseID:            e.CourseID,
		CourseName:          e.CourseName,
		Name:                e.Name,
		Description:         e.Description,
		MinimumPassingScore: e.MinimumPassingScore,
		TotalPoints:         e.TotalPoints,
		DurationMinutes:     e.DurationMinutes,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		Status:              e.Status,
	}
}

// CreateExamRequest is the payload for authoring a new exam.
type CreateExamRequest struct {
	Name                  string          `json:"name" binding:"required,min=1,max=255"`
	CourseID              string          `json:"course_id" binding:"required,max=64"`
	Description           string          `json:"description" binding:"max=5000"`
	MinimumPassingScore   int             `json:"minimum_passing_score" binding:"min=0,max=5000000"`
	StartDate             int64           `json:"start_date" binding:"required,gt=0"` // unix seconds
	Duration              int             `json:"duration" binding:"required,min=1,max=1440"`
	IsQuestionsRandomized bool            `json:"is_questions_randomized"`
	IsOptionsRandomized   bool            `json:"is_options_randomized"`
	Questions             []QuestionInput `json:"questions" binding:"required,min=1,max=500,dive"`
}

// QuestionInput is one authored question.
type QuestionInput struct {
	QuestionText string        `json:"question_text" binding:"required,max=5000"`
	Points       int           `json:"points" binding:"min=0,max=10000"`
	Options      []OptionInput `json:"options" binding:"required,min=2,max=26,one_correct,dive"`
}

// OptionInput is one authored option; exactly one per question is correct.
type OptionInput struct {
	OptionText string `json:"option_text" binding:"required,max=2000"`
	IsCorrect  bool   `json:"is_correct"`
}

// Limits on authored exams. They keep any total within a 32-bit column and
// mirror the binding tags on the request types.
const (
	MaxQuestions      = 500
	MaxQuestionPoints = 10000
	MaxPassingScore   = MaxQuestions * MaxQuestionPoints
)

// CountCorrect returns how many options are marked correct.
func CountCorrect(options []OptionInput) int {
	n := 0
	for _, o := range options {
		if o.IsCorrect {
			n++
		}
	}
	return n
}

// ExamResult is one row of an exam's results listing.
type ExamResult struct {
	SubjectID    string        `json:"subject_id"`
	Status       SessionStatus `json:"status"`
	Score        int           `json:"score"`
	CorrectCount int           `json:"correct_count"`
	Passed       bool          `json:"passed"`
	Answered     int           `json:"answered"`
	JoinedAt     time.Time     `json:"joined_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
}

// FinishReport summarises a grading run.
type FinishReport struct {
	ExamID uuid.UUID `json:"exam_id"`
	Graded int       `json:"graded"`
	Passed int       `json:"passed"`
	Failed int       `json:"failed"`
}

// FinisherJob is the payload armed with the deferred scheduler.
type FinisherJob struct {
	ExamID   string `json:"exam_id"`
	CourseID string `json:"course_id"`
	Ticket   string `json:"ticket"`
	Attempts int    `json:"attempts,omitempty"`
}

// FailedFinisherJob is a dead-lettered job with the reason it was dropped.
type FailedFinisherJob struct {
	Job      FinisherJob `json:"job"`
	Error    string      `json:"error"`
	FailedAt time.Time   `json:"failed_at"`
}
