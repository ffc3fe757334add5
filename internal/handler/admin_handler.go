package handler

import (
	"net/http"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/certexam/certexam-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdminHandler handles result review, exam settings and code issuance.
type AdminHandler struct {
	examService   *service.ExamService
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(examService *service.ExamService, resultService *service.ResultService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		examService:   examService,
		resultService: resultService,
		log:           log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/v1/admin/results?page=&per_page=&candidate_code=&personal_id=
// Lists sessions newest first.
func (h *AdminHandler) ListResults(c *gin.Context) {
	var q model.ResultListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	items, pagination, err := h.resultService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": items}, pagination)
}

// GetResult godoc
// GET /api/v1/admin/results/:session_id
// Returns one session with its per-question breakdown.
func (h *AdminHandler) GetResult(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.resultService.Detail(c.Request.Context(), sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// GetSettings godoc
// GET /api/v1/admin/exams/:exam_id/settings
// Returns the editable exam fields, gate password included.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	settings, err := h.examService.GetSettings(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, settings)
}

// UpdateSettings godoc
// PUT /api/v1/admin/exams/:exam_id/settings
// Updates title, duration and gate password. Omitted fields are kept.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateExamSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	settings, err := h.examService.UpdateSettings(c.Request.Context(), examID, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, settings)
}

// IssueCodes godoc
// POST /api/v1/admin/exams/:exam_id/codes
// Generates access codes. The plaintext is only ever returned here.
func (h *AdminHandler) IssueCodes(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.IssueCodesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	codes, err := h.examService.IssueCodes(c.Request.Context(), examID, req.Count)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"codes": codes})
}
