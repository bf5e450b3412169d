package model

import "github.com/google/uuid"

// ExamContent is the private question blob. It is the only place the
// correct-option markers are persisted.
type ExamContent struct {
	ExamID    uuid.UUID         `json:"exam_id"`
	CourseID  string            `json:"course_id"`
	Questions []ContentQuestion `json:"questions"`
}

// ContentQuestion is a question as authored, including its answer.
type ContentQuestion struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Points          int      `json:"points"`
	CorrectOptionID string   `json:"correct_option_id"`
	Options         []Option `json:"options"`
}

// Option is a single answer choice.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CandidateQuestion is a question as shown to a candidate: no answer marker.
type CandidateQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Points  int      `json:"points"`
	Options []Option `json:"options"`
}

// AnswerKeyEntry is the grading data for one question.
type AnswerKeyEntry struct {
	CorrectOptionID string
	Points          int
}

// AnswerKey maps question id to its grading data.
type AnswerKey map[string]AnswerKeyEntry

// AnswerKey builds the grading key from the content.
func (c *ExamContent) AnswerKey() AnswerKey {
	key := make(AnswerKey, len(c.Questions))
	for _, q := range c.Questions {
		key[q.ID] = AnswerKeyEntry{CorrectOptionID: q.CorrectOptionID, Points: q.Points}
	}
	return key
}

// MetaData builds the public question → option ids index.
func (c *ExamContent) MetaData() QuestionsMetaData {
	meta := make(QuestionsMetaData, len(c.Questions))
	for _, q := range c.Questions {
		ids := make([]string, len(q.Options))
		for i, o := range q.Options {
			ids[i] = o.ID
		}
		meta[q.ID] = ids
	}
	return meta
}

// TotalPoints sums the point values of all questions.
func (c *ExamContent) TotalPoints() int {
	total := 0
	for _, q := range c.Questions {
		total += q.Points
	}
	return total
}
