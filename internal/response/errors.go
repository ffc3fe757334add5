package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrInvalidCode        ErrCode = "INVALID_CODE"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrSessionNotLive  ErrCode = "SESSION_NOT_LIVE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation              ErrCode = "VALIDATION_ERROR"
	ErrInvalidID               ErrCode = "INVALID_ID"
	ErrSelectionNotInitialized ErrCode = "SELECTION_NOT_INITIALIZED"
	ErrQuestionNotAllowed      ErrCode = "QUESTION_NOT_ALLOWED"
	ErrOptionMismatch          ErrCode = "OPTION_MISMATCH"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrBlockNotFound   ErrCode = "BLOCK_NOT_FOUND"
	ErrNoQuestions     ErrCode = "NO_QUESTIONS"
	ErrOptionNotFound  ErrCode = "OPTION_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"

	// ─── Conflicts ─────────────────────────────────────────────────────
	ErrConflict        ErrCode = "CONFLICT"
	ErrAlreadyAnswered ErrCode = "ALREADY_ANSWERED"
	ErrSessionActive   ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrCodeAlreadyUsed ErrCode = "CODE_ALREADY_USED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrMediaDisabled   ErrCode = "MEDIA_DISABLED"
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrInvalidCode:
		return "The access code is invalid or has already been used."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrSessionNotLive:
		return "The exam session is no longer active."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "The request contains invalid fields."
	case ErrInvalidID:
		return "The given ID is not valid."
	case ErrSelectionNotInitialized:
		return "No questions have been selected for this session yet."
	case ErrQuestionNotAllowed:
		return "The question is not part of this session."
	case ErrOptionMismatch:
		return "The option does not belong to the question."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrBlockNotFound:
		return "Block not found."
	case ErrNoQuestions:
		return "This block has no questions."
	case ErrOptionNotFound:
		return "Option not found."
	case ErrSessionNotFound:
		return "Session not found."

	// ─── Conflicts ─────────────────────────────────────────────────────
	case ErrConflict:
		return "The request conflicts with the current state."
	case ErrAlreadyAnswered:
		return "This question has already been answered."
	case ErrSessionActive:
		return "An active session already exists for this code."
	case ErrCodeAlreadyUsed:
		return "The access code has already been used."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrMediaDisabled:
		return "Media uploads are disabled."
	case ErrFileRequired:
		return "A file is required."
	case ErrUnsupportedFile:
		return "This file type is not supported."
	case ErrFileTooLarge:
		return "The file exceeds the maximum allowed size."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."

	default:
		return "An unknown error occurred."
	}
}
