package model

// Role is the subject role carried in the identity token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// IsStaff reports whether r may author exams and bypass course membership.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeacher
}
