package handler

import (
	"net/http"

	"github.com/certexam/certexam-backend/internal/middleware"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/certexam/certexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandler handles the candidate's in-session endpoints. Every route
// runs behind middleware.RequireSessionToken.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

func currentSession(c *gin.Context) (*model.Session, bool) {
	sess := middleware.GetSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	return sess, true
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
// Returns the session state, remaining time and answered count.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	view, err := h.sessionService.Describe(c.Request.Context(), sess)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetQuestions godoc
// GET /api/v1/sessions/:session_id/questions?block_id=
// Returns the block's questions for this session, drawing them on first call.
func (h *SessionHandler) GetQuestions(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var q model.SelectBlockQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.sessionService.SelectBlockQuestions(c.Request.Context(), sess, q.BlockID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, questions)
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/answers
// Records the answer to one selected question. Answers are final.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	correct, err := h.sessionService.SubmitAnswer(c.Request.Context(), sess, req.QuestionID, req.OptionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"question_id": req.QuestionID,
		"is_correct":  correct,
	})
}

// FinishSession godoc
// POST /api/v1/sessions/:session_id/finish
// Closes the session and returns its score.
func (h *SessionHandler) FinishSession(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	summary, err := h.sessionService.FinishSession(c.Request.Context(), sess)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// ConsumePermission godoc
// POST /api/v1/sessions/:session_id/consume-permission
// Clears the candidate's exam permission. Always 204.
func (h *SessionHandler) ConsumePermission(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	h.sessionService.ConsumePermission(c.Request.Context(), sess)
	c.Status(http.StatusNoContent)
}
