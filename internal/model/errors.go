package model

import "errors"

// Error kinds. Every domain error wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Domain errors.
var (
	ErrExamNotFound    = newError(ErrNotFound, "exam not found")
	ErrBlockNotFound   = newError(ErrNotFound, "block not found")
	ErrNoQuestions     = newError(ErrNotFound, "block has no questions")
	ErrOptionNotFound  = newError(ErrNotFound, "option not found")
	ErrSessionNotFound = newError(ErrNotFound, "session not found")
	ErrUserNotFound    = newError(ErrNotFound, "user not found")

	ErrInvalidCode        = newError(ErrUnauthorized, "invalid or used code")
	ErrInvalidToken       = newError(ErrUnauthorized, "invalid session token")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid credentials")

	ErrSessionNotLive = newError(ErrForbidden, "session is not active")
	ErrMediaDisabled  = newError(ErrForbidden, "media uploads are disabled")

	ErrAlreadyAnswered     = newError(ErrConflict, "question already answered")
	ErrActiveSessionExists = newError(ErrConflict, "an active session already exists for this code")
	ErrCodeAlreadyUsed     = newError(ErrConflict, "code already used")

	ErrSelectionNotInitialized = newError(ErrBadRequest, "questions not initialized")
	ErrQuestionNotAllowed      = newError(ErrBadRequest, "question not allowed in this session")
	ErrOptionMismatch          = newError(ErrBadRequest, "option does not belong to question")
	ErrUnsupportedMedia        = newError(ErrBadRequest, "unsupported media type")
	ErrMediaTooLarge           = newError(ErrBadRequest, "media file too large")
)
