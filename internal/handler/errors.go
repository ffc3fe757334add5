package handler

import (
	"errors"
	"net/http"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// specificCodes maps domain errors to their dedicated response codes.
var specificCodes = []struct {
	err  error
	code response.ErrCode
}{
	{model.ErrExamNotFound, response.ErrExamNotFound},
	{model.ErrBlockNotFound, response.ErrBlockNotFound},
	{model.ErrNoQuestions, response.ErrNoQuestions},
	{model.ErrOptionNotFound, response.ErrOptionNotFound},
	{model.ErrSessionNotFound, response.ErrSessionNotFound},
	{model.ErrInvalidCode, response.ErrInvalidCode},
	{model.ErrInvalidToken, response.ErrTokenInvalid},
	{model.ErrInvalidCredentials, response.ErrInvalidCredentials},
	{model.ErrSessionNotLive, response.ErrSessionNotLive},
	{model.ErrMediaDisabled, response.ErrMediaDisabled},
	{model.ErrAlreadyAnswered, response.ErrAlreadyAnswered},
	{model.ErrActiveSessionExists, response.ErrSessionActive},
	{model.ErrCodeAlreadyUsed, response.ErrCodeAlreadyUsed},
	{model.ErrSelectionNotInitialized, response.ErrSelectionNotInitialized},
	{model.ErrQuestionNotAllowed, response.ErrQuestionNotAllowed},
	{model.ErrOptionMismatch, response.ErrOptionMismatch},
	{model.ErrUnsupportedMedia, response.ErrUnsupportedFile},
	{model.ErrMediaTooLarge, response.ErrFileTooLarge},
}

// classify maps an error to its HTTP status and response code. Anything that
// is not a domain error is a 500.
func classify(err error) (int, response.ErrCode) {
	status := http.StatusInternalServerError
	code := response.ErrInternal

	switch {
	case errors.Is(err, model.ErrNotFound):
		status, code = http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, model.ErrUnauthorized):
		status, code = http.StatusUnauthorized, response.ErrTokenInvalid
	case errors.Is(err, model.ErrForbidden):
		status, code = http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, model.ErrConflict):
		status, code = http.StatusConflict, response.ErrConflict
	case errors.Is(err, model.ErrBadRequest):
		status, code = http.StatusBadRequest, response.ErrValidation
	default:
		return status, code
	}

	for _, sc := range specificCodes {
		if errors.Is(err, sc.err) {
			return status, sc.code
		}
	}
	return status, code
}

// fail writes err as an error envelope. Unexpected errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}
