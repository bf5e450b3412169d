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

// CandidateHandler handles the candidate side of an exam: join, answer, history.
type CandidateHandler struct {
	enrollment *service.EnrollmentService
	submission *service.SubmissionService
	log        zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(enrollment *service.EnrollmentService, submission *service.SubmissionService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		enrollment: enrollment,
		submission: submission,
		log:        log.With().Str("component", "candidate_handler").Logger(),
	}
}

// JoinExam godoc
// POST /api/v1/exams/:exam_id/join
// Returns the exam credential and the candidate's question order.
// Joining again replays the original order and saved answers.
func (h *CandidateHandler) JoinExam(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if id == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	res, err := h.enrollment.Join(c.Request.Context(), id, examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyJoined {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// SubmitAnswer godoc
// POST /api/v1/exams/:exam_id/answers
// Records one answer. Requires X-Exam-Token.
func (h *CandidateHandler) SubmitAnswer(c *gin.Context) {
	id := middleware.GetIdentity(c)
	claims := middleware.GetExamClaims(c)
	if id == nil || claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrExamTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.submission.Submit(c.Request.Context(), id, claims, examID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// MyExams godoc
// GET /api/v1/me/exams?type=active|finished
func (h *CandidateHandler) MyExams(c *gin.Context) {
	id := middleware.GetIdentity(c)
	if id == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.MyExamsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exams, err := h.enrollment.MyExams(c.Request.Context(), id, q.Type)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}
