package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/service"
)

const (
	// ContextKeyIdentity is the Gin context key for the verified caller.
	ContextKeyIdentity = "identity"
)

// IdentityVerifier validates bearer credentials.
type IdentityVerifier interface {
	VerifyIdentity(token string) (*service.Identity, error)
}

// RequireIdentity validates the bearer credential from the Authorization header.
func RequireIdentity(v IdentityVerifier) gin.HandlerFunc {
	return requireIdentity(v, bearerToken)
}

// RequireWSIdentity is RequireIdentity for WebSocket upgrades, which cannot
// send headers from a browser. It also accepts ?token=.
func RequireWSIdentity(v IdentityVerifier) gin.HandlerFunc {
	return requireIdentity(v, func(c *gin.Context) string {
		if tok := bearerToken(c); tok != "" {
			return tok
		}
		return c.Query("token")
	})
}

func requireIdentity(v IdentityVerifier, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extract(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		id, err := v.VerifyIdentity(tokenStr)
		if err != nil {
			code := response.ErrTokenInvalid
			if se, ok := service.AsError(err); ok {
				code = se.Code
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

// GetIdentity retrieves the verified caller from the Gin context.
func GetIdentity(c *gin.Context) *service.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil
	}
	id, ok := val.(*service.Identity)
	if !ok {
		return nil
	}
	return id
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
