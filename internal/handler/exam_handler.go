package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/middleware"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
	"github.com/stemsi/examinator/internal/validator"
)

// ExamHandler handles exam authoring and administration endpoints.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// CreateExam godoc
// POST /api/v1/exams
// Creates an exam, stores its content and arms the finisher.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if id == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CancelExam godoc
// POST /api/v1/exams/:exam_id/cancel
// Moves a normal exam to canceled. The armed finisher will refuse it.
func (h *ExamHandler) CancelExam(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if id == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	exam, err := h.examService.Cancel(c.Request.Context(), id, examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetResults godoc
// GET /api/v1/exams/:exam_id/results
func (h *ExamHandler) GetResults(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	results, err := h.examService.Results(c.Request.Context(), examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// ListCourseExams godoc
// GET /api/v1/courses/:course_id/exams
// Students only see courses they belong to.
func (h *ExamHandler) ListCourseExams(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if id == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.examService.ListByCourse(c.Request.Context(), id, c.Param("course_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}
