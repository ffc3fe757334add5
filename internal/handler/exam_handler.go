package handler

import (
	"net/http"
	"strconv"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/certexam/certexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExamHandler handles the public exam endpoints that open sessions.
type ExamHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, sessionService *service.ExamSessionService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		sessionService: sessionService,
		log:            log.With().Str("component", "exam_handler").Logger(),
	}
}

// examIDParam parses :exam_id, writing a 400 when it is malformed.
func examIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("exam_id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// GetConfig godoc
// GET /api/v1/exams/:exam_id/config
// Returns the exam header and its enabled blocks.
func (h *ExamHandler) GetConfig(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	cfg, err := h.examService.GetConfig(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, cfg)
}

// VerifyGate godoc
// POST /api/v1/exams/:exam_id/gate/verify
// Checks the exam gate password.
func (h *ExamHandler) VerifyGate(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.GateVerifyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	valid, err := h.examService.VerifyGatePassword(c.Request.Context(), examID, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"valid": valid})
}

// RedeemCode godoc
// POST /api/v1/exams/:exam_id/redeem
// Exchanges a one-time access code for a session token.
func (h *ExamHandler) RedeemCode(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.RedeemCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	grant, err := h.sessionService.RedeemCode(c.Request.Context(), examID, req.Code)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, grant)
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/sessions
// Opens a session without an access code.
func (h *ExamHandler) StartSession(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	grant, err := h.sessionService.StartSession(c.Request.Context(), examID, model.CandidateMeta{
		FirstName: req.CandidateFirstName,
		LastName:  req.CandidateLastName,
		Code:      req.CandidateCode,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, grant)
}
