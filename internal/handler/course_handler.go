package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
)

// CourseHandler serves the static course catalog.
type CourseHandler struct {
	catalog *service.CourseCatalog
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(catalog *service.CourseCatalog) *CourseHandler {
	return &CourseHandler{catalog: catalog}
}

// ListCourses godoc
// GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"courses": h.catalog.List()})
}
