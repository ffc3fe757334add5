package handler

import (
	"net/http"

	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MediaHandler handles proctoring media uploads.
type MediaHandler struct {
	mediaService *service.MediaService
	log          zerolog.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(mediaService *service.MediaService, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		log:          log.With().Str("component", "media_handler").Logger(),
	}
}

// UploadMedia godoc
// POST /api/v1/sessions/:session_id/media
// Stores one image or video clip for a live session (multipart field "file").
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if !h.mediaService.Enabled() {
		response.Fail(c, http.StatusForbidden, response.ErrMediaDisabled)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	upload, err := h.mediaService.Upload(c.Request.Context(), sess, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, upload)
}
