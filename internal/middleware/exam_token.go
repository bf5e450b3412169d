package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
)

const (
	// HeaderExamToken carries the exam-scoped credential issued at join.
	HeaderExamToken = "X-Exam-Token"
	// ContextKeyExamClaims is the Gin context key for the exam credential claims.
	ContextKeyExamClaims = "exam_claims"
)

// ExamTokenVerifier validates exam-scoped credentials.
type ExamTokenVerifier interface {
	VerifyExamToken(token string) (*service.ExamClaims, error)
}

// RequireExamToken validates X-Exam-Token and checks that it was issued to
// the verified caller. Must run after RequireIdentity.
func RequireExamToken(v ExamTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader(HeaderExamToken)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrExamTokenRequired)
			return
		}

		claims, err := v.VerifyExamToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrExamTokenInvalid)
			return
		}

		id := GetIdentity(c)
		if id == nil || id.SubjectID != claims.Subject {
			response.AbortFail(c, http.StatusForbidden, response.ErrExamTokenMismatch)
			return
		}

		c.Set(ContextKeyExamClaims, claims)
		c.Next()
	}
}

// GetExamClaims retrieves the exam credential claims from the Gin context.
func GetExamClaims(c *gin.Context) *service.ExamClaims {
	val, exists := c.Get(ContextKeyExamClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.ExamClaims)
	if !ok {
		return nil
	}
	return claims
}
