package middleware

import (
	"net/http"

	"github.com/certexam/certexam-backend/internal/response"
	"github.com/gin-gonic/gin"
)

// RequireAdminRole checks that the admin JWT carries a role whose policy
// grants admin access.
func RequireAdminRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if !claims.Role.Valid() || !claims.Role.Policy().AdminAccess {
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
			return
		}

		c.Next()
	}
}
