package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
)

// statusFor maps a service error kind onto its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an envelope. Upstream and unclassified
// failures are logged here, once, and surface as a generic message.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	se, ok := service.AsError(err)
	if !ok || se.Kind == service.KindUpstream {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.FailWithMessage(c, statusFor(se.Kind), se.Code, se.Message)
}

// examIDParam parses the :exam_id path parameter, answering 400 on failure.
func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
