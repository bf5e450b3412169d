package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/response"
)

// RequireRole checks that the verified caller holds one of roles.
// Must run after RequireIdentity.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrStaffOnly)
	}
}

// RequireStaff admits teachers and administrators.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(model.RoleTeacher, model.RoleAdmin)
}
