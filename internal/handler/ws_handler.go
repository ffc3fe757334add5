package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	ws "github.com/certexam/certexam-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the session operations over a WebSocket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream?token=
// Upgrades to WebSocket. Each action behaves exactly like its HTTP route.
func (h *WSHandler) SessionStream(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sess.ID.String()).Logger()
	wsLog.Info().Msg("Candidate connected")

	// The request context ends with the handler, which outlives the loop.
	ctx := c.Request.Context()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := h.dispatch(ctx, conn, wsLog, sess, &msg); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			return
		}
	}
}

// dispatch runs one action. Only write errors are returned.
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sess *model.Session, msg *ws.RequestPayload) error {
	if msg.Action == ws.ActionPing {
		return ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
	}

	// The HTTP routes may have changed the session since the last message.
	sess, err := h.sessionService.Reload(ctx, sess.ID)
	if err != nil {
		return h.writeErr(conn, wsLog, err)
	}

	switch msg.Action {
	case ws.ActionSelect:
		if msg.BlockID < 1 {
			return h.writeCode(conn, response.ErrValidation)
		}
		questions, err := h.sessionService.SelectBlockQuestions(ctx, sess, msg.BlockID)
		if err != nil {
			return h.writeErr(conn, wsLog, err)
		}
		return ws.WriteTyped(conn, ws.QuestionsResponse{Event: ws.EventQuestions, Data: questions})

	case ws.ActionAnswer:
		if msg.QuestionID < 1 || msg.OptionID < 1 {
			return h.writeCode(conn, response.ErrValidation)
		}
		correct, err := h.sessionService.SubmitAnswer(ctx, sess, msg.QuestionID, msg.OptionID)
		if err != nil {
			return h.writeErr(conn, wsLog, err)
		}
		return ws.WriteTyped(conn, ws.AnsweredResponse{Event: ws.EventAnswered, QuestionID: msg.QuestionID, IsCorrect: correct})

	case ws.ActionFinish:
		summary, err := h.sessionService.FinishSession(ctx, sess)
		if err != nil {
			return h.writeErr(conn, wsLog, err)
		}
		return ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished, Data: summary})

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return ws.WriteError(conn, string(response.ErrValidation), "unknown action: "+string(msg.Action))
	}
}

func (h *WSHandler) writeErr(conn *websocket.Conn, wsLog zerolog.Logger, err error) error {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Stream action failed")
	}
	return h.writeCode(conn, code)
}

func (h *WSHandler) writeCode(conn *websocket.Conn, code response.ErrCode) error {
	return ws.WriteError(conn, string(code), response.GetMessage(code))
}
