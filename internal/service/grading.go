package service

import (
	"time"

	"github.com/stemsi/examinator/internal/model"
)

// Grade scores answers against key. Unanswered and unknown questions score
// nothing; a candidate passes when the score reaches minPassing.
func Grade(key model.AnswerKey, answers map[string]string, minPassing int, finishedAt time.Time) model.GradeResult {
	g := model.GradeResult{FinishedAt: finishedAt}
	for questionID, optionID := range answers {
		entry, ok := key[questionID]
		if !ok || entry.CorrectOptionID != optionID {
			continue
		}
		g.Score += entry.Points
		g.CorrectCount++
	}
	g.Passed = g.Score >= minPassing
	return g
}
