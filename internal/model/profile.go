package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a subject's profile record.
type Profile struct {
	SubjectID string                 `json:"subject_id"`
	Role      Role                   `json:"role"`
	Email     string                 `json:"email"`
	FirstName string                 `json:"first_name"`
	LastName  string                 `json:"last_name"`
	Courses   []string               `json:"courses"`
	Exams     map[string]ProfileExam `json:"exams"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// InCourse reports whether the profile is enrolled in courseID.
func (p *Profile) InCourse(courseID string) bool {
	for _, c := range p.Courses {
		if c == courseID {
			return true
		}
	}
	return false
}

// ProfileExam is the denormalised per-exam summary kept inside a profile.
type ProfileExam struct {
	ExamID       uuid.UUID     `json:"exam_id"`
	Name         string        `json:"name"`
	CourseID     string        `json:"course_id"`
	CourseName   string        `json:"course_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	TotalPoints  int           `json:"total_points"`
	JoinedAt     time.Time     `json:"joined_at"`
	Status       SessionStatus `json:"status"`
	Passed       *bool         `json:"passed,omitempty"`
	Score        *int          `json:"score,omitempty"`
	CorrectCount *int          `json:"correct_count,omitempty"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	// ExamStatus is resolved when listing and is not stored.
	ExamStatus ExamStatus `json:"exam_status,omitempty"`
}

// MyExamsKind filters the "my exams" listing.
type MyExamsKind string

const (
	// MyExamsActive lists joined exams that are still open for answers.
	MyExamsActive MyExamsKind = "active"
	// MyExamsFinished lists exams that are over: graded, or canceled.
	MyExamsFinished MyExamsKind = "finished"
)

// MyExamsQuery is the query string of the "my exams" listing.
type MyExamsQuery struct {
	Type MyExamsKind `form:"type" binding:"required,oneof=active finished"`
}

// ExamVerdict is the finisher's portion of a ProfileExam, merged over the
// join-time summary.
type ExamVerdict struct {
	Status       SessionStatus `json:"status"`
	Passed       bool          `json:"passed"`
	Score        int           `json:"score"`
	CorrectCount int           `json:"correct_count"`
	FinishedAt   time.Time     `json:"finished_at"`
}
