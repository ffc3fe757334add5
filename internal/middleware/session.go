package middleware

import (
	"errors"
	"net/http"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKeySession is the Gin context key for the authenticated exam session.
const ContextKeySession = "exam_session"

// CheckAdminSession validates the JWT's JTI against the active admin session
// in Redis. A newer login or a logout invalidates older tokens.
func CheckAdminSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateAdminSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}

// RequireSessionToken authenticates the exam session named by :session_id
// with its bearer token.
func RequireSessionToken(sessions *service.ExamSessionService, log zerolog.Logger) gin.HandlerFunc {
	return requireSession(sessions, log, false)
}

// RequireStreamToken is RequireSessionToken for WebSocket upgrades. Browsers
// cannot set headers on the upgrade, so ?token= is accepted as a fallback.
func RequireStreamToken(sessions *service.ExamSessionService, log zerolog.Logger) gin.HandlerFunc {
	return requireSession(sessions, log, true)
}

func requireSession(sessions *service.ExamSessionService, log zerolog.Logger, queryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("session_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		token := bearerToken(c)
		if token == "" && queryToken {
			token = c.Query("token")
		}
		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		sess, err := sessions.Authenticate(c.Request.Context(), sessionID, token)
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
				return
			}
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Session authentication failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// GetSession retrieves the authenticated exam session from the Gin context.
func GetSession(c *gin.Context) *model.Session {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, ok := val.(*model.Session)
	if !ok {
		return nil
	}
	return sess
}
