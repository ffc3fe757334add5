package websocket

import "github.com/certexam/certexam-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect Action = "select"
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestPayload is the single client message shape. Fields unused by an
// action are ignored.
type RequestPayload struct {
	Action     Action `json:"action"`
	BlockID    int64  `json:"block_id,omitempty"`
	QuestionID int64  `json:"question_id,omitempty"`
	OptionID   int64  `json:"option_id,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQuestions Event = "questions"
	EventAnswered  Event = "answered"
	EventFinished  Event = "finished"
	EventPong      Event = "pong"
	EventError     Event = "error"
)

type QuestionsResponse struct {
	Event Event                 `json:"event"`
	Data  *model.BlockQuestions `json:"data"`
}

type AnsweredResponse struct {
	Event      Event `json:"event"`
	QuestionID int64 `json:"question_id"`
	IsCorrect  bool  `json:"is_correct"`
}

type FinishedResponse struct {
	Event Event               `json:"event"`
	Data  *model.ScoreSummary `json:"data"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse carries the same code the HTTP API would return.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
