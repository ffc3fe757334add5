package model

// RedeemCodeRequest is the payload for exchanging an access code for a session.
type RedeemCodeRequest struct {
	Code string `json:"code" binding:"required,min=4,max=64"`
}

// StartSessionRequest is the payload for the code-less session start.
type StartSessionRequest struct {
	CandidateFirstName string `json:"candidate_first_name" binding:"omitempty,max=128"`
	CandidateLastName  string `json:"candidate_last_name" binding:"omitempty,max=128"`
	CandidateCode      string `json:"candidate_code" binding:"omitempty,max=64"`
}

// CandidateMeta identifies the person sitting a code-less session.
type CandidateMeta struct {
	FirstName string
	LastName  string
	Code      string
}

// GateVerifyRequest is the payload for checking the exam gate password.
type GateVerifyRequest struct {
	Password string `json:"password" binding:"required,max=64"`
}

// SelectBlockQuery is the query for drawing a block's questions.
type SelectBlockQuery struct {
	BlockID int64 `form:"block_id" binding:"required,min=1"`
}

// SubmitAnswerRequest is the payload for answering one question.
type SubmitAnswerRequest struct {
	QuestionID int64 `json:"question_id" binding:"required,min=1"`
	OptionID   int64 `json:"option_id" binding:"required,min=1"`
}

// AdminLoginRequest is the payload for admin login.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateExamSettingsRequest is the payload for editing exam settings.
type UpdateExamSettingsRequest struct {
	Title           *string `json:"title" binding:"omitempty,max=255"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty"`
	GatePassword    *string `json:"gate_password" binding:"omitempty,max=64"`
}

// IssueCodesRequest is the payload for generating access codes.
type IssueCodesRequest struct {
	Count int `json:"count" binding:"required,min=1,max=500"`
}

// ResultListQuery is the query for the admin result listing.
type ResultListQuery struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PerPage       int    `form:"per_page" binding:"omitempty,min=1,max=100"`
	CandidateCode string `form:"candidate_code" binding:"omitempty,max=64"`
	PersonalID    string `form:"personal_id" binding:"omitempty,max=32"`
}
