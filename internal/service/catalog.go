package service

import "github.com/stemsi/examinator/internal/model"

// CourseCatalog is the static set of courses exams can belong to.
type CourseCatalog struct {
	ordered []model.Course
	byID    map[string]model.Course
}

// NewCourseCatalog indexes courses by id. Later duplicates are ignored.
func NewCourseCatalog(courses []model.Course) *CourseCatalog {
	c := &CourseCatalog{byID: make(map[string]model.Course, len(courses))}
	for _, course := range courses {
		if _, dup := c.byID[course.ID]; dup {
			continue
		}
		c.byID[course.ID] = course
		c.ordered = append(c.ordered, course)
	}
	return c
}

// Lookup returns the course with the given id.
func (c *CourseCatalog) Lookup(id string) (model.Course, bool) {
	course, ok := c.byID[id]
	return course, ok
}

// List returns all courses in catalog order.
func (c *CourseCatalog) List() []model.Course {
	out := make([]model.Course, len(c.ordered))
	copy(out, c.ordered)
	return out
}
