package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExamSessionDeps groups the collaborators of ExamSessionService.
type ExamSessionDeps struct {
	Bank     QuestionBank
	Exams    ExamStore
	Codes    CodeStore
	Sessions SessionStore
	Answers  AnswerStore
	Users    UserStore
	Hasher   *Hasher
	Selector *Selector
	Events   EventSink
}

// ExamSessionService runs the session lifecycle: code redemption, question
// selection, answer recording and scoring.
type ExamSessionService struct {
	bank     QuestionBank
	exams    ExamStore
	codes    CodeStore
	sessions SessionStore
	answers  AnswerStore
	users    UserStore
	hasher   *Hasher
	selector *Selector
	events   EventSink
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(deps ExamSessionDeps, log zerolog.Logger) *ExamSessionService {
	s := &ExamSessionService{
		bank:     deps.Bank,
		exams:    deps.Exams,
		codes:    deps.Codes,
		sessions: deps.Sessions,
		answers:  deps.Answers,
		users:    deps.Users,
		hasher:   deps.Hasher,
		selector: deps.Selector,
		events:   deps.Events,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.bank == nil {
		s.bank = deps.Exams
	}
	if s.selector == nil {
		s.selector = NewSelector()
	}
	if s.events == nil {
		s.events = discardEvents{}
	}
	return s
}

// ────────────────────────────────────────────────────────────────────────────
// Opening a session
// ────────────────────────────────────────────────────────────────────────────

// RedeemCode exchanges a one-time access code for a new session.
// A missing exam and a wrong code both yield ErrInvalidCode.
func (s *ExamSessionService) RedeemCode(ctx context.Context, examID int64, code string) (*model.SessionGrant, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCode
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	candidates, err := s.codes.ListRedeemableCodes(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}

	code = strings.TrimSpace(code)
	var match *model.ExamCode
	for i := range candidates {
		if s.hasher.Verify(candidates[i].CodeHash, code) {
			match = &candidates[i]
			break
		}
	}
	if match == nil {
		return nil, model.ErrInvalidCode
	}

	sess, err := s.newSession(exam)
	if err != nil {
		return nil, err
	}
	sess.CodeID = &match.ID

	if err := s.sessions.CreateWithCode(ctx, sess); err != nil {
		return nil, fmt.Errorf("redeem code: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int64("exam_id", examID).
		Int64("code_id", match.ID).
		Msg("Code redeemed")
	s.publish(ctx, sess.ID, model.EventRedeemed, map[string]interface{}{"code_id": match.ID})

	return grantFor(sess, exam), nil
}

// StartSession opens a code-less session for the given candidate.
func (s *ExamSessionService) StartSession(ctx context.Context, examID int64, meta model.CandidateMeta) (*model.SessionGrant, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.newSession(exam)
	if err != nil {
		return nil, err
	}
	sess.CandidateFirstName = strings.TrimSpace(meta.FirstName)
	sess.CandidateLastName = strings.TrimSpace(meta.LastName)
	sess.CandidateCode = strings.TrimSpace(meta.Code)

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int64("exam_id", examID).
		Str("candidate_code", sess.CandidateCode).
		Msg("Session started")
	s.publish(ctx, sess.ID, model.EventStarted, nil)

	return grantFor(sess, exam), nil
}

func (s *ExamSessionService) newSession(exam *model.Exam) (*model.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &model.Session{
		ID:          uuid.New(),
		ExamID:      exam.ID,
		Token:       token,
		StartedAt:   now,
		EndsAt:      now.Add(exam.Duration()),
		Active:      true,
		SelectedMap: model.SelectedMap{},
	}, nil
}

func grantFor(sess *model.Session, exam *model.Exam) *model.SessionGrant {
	return &model.SessionGrant{
		SessionID:       sess.ID,
		Token:           sess.Token,
		ExamID:          exam.ID,
		DurationMinutes: exam.DurationMinutes,
		EndsAt:          sess.EndsAt,
	}
}

// Authenticate loads a session and checks its bearer token.
// Unknown sessions and wrong tokens are indistinguishable.
func (s *ExamSessionService) Authenticate(ctx context.Context, sessionID uuid.UUID, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.ErrInvalidToken
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidToken
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !secretsEqual(sess.Token, token) {
		return nil, model.ErrInvalidToken
	}
	return sess, nil
}

// Reload re-reads a session that was authenticated earlier, for long-lived
// connections that act on it repeatedly.
func (s *ExamSessionService) Reload(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Selection
// ────────────────────────────────────────────────────────────────────────────

// SelectBlockQuestions returns the session's frozen draw for a block, drawing
// it on first request. Options never carry correctness.
func (s *ExamSessionService) SelectBlockQuestions(ctx context.Context, sess *model.Session, blockID int64) (*model.BlockQuestions, error) {
	now := s.now()
	if !sess.IsLive(now) {
		return nil, model.ErrSessionNotLive
	}

	block, err := s.bank.GetBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	if !block.Enabled || block.ExamID != sess.ExamID {
		return nil, model.ErrBlockNotFound
	}

	pool, err := s.bank.ListBlockQuestions(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("list block questions: %w", err)
	}

	poolIDs := make([]int64, len(pool))
	for i, q := range pool {
		poolIDs[i] = q.ID
	}

	// An empty pool only matters for a fresh draw; a frozen block keeps
	// serving its list after the bank changes.
	drawn := false
	ids, err := s.sessions.FreezeSelection(ctx, sess.ID, blockID, now, func() ([]int64, error) {
		if len(poolIDs) == 0 {
			return nil, model.ErrNoQuestions
		}
		drawn = true
		return s.selector.Draw(poolIDs, block.Qty), nil
	})
	if err != nil {
		return nil, fmt.Errorf("freeze selection: %w", err)
	}

	if sess.SelectedMap == nil {
		sess.SelectedMap = model.SelectedMap{}
	}
	sess.SelectedMap[fmt.Sprint(blockID)] = ids

	questions, err := s.presentQuestions(ctx, pool, ids)
	if err != nil {
		return nil, err
	}

	if drawn {
		s.log.Debug().
			Str("session_id", sess.ID.String()).
			Int64("block_id", blockID).
			Int("drawn", len(ids)).
			Msg("Block selection frozen")
		s.publish(ctx, sess.ID, model.EventBlockSelected, map[string]interface{}{
			"block_id":     blockID,
			"question_ids": ids,
		})
	}

	return &model.BlockQuestions{
		BlockID:    block.ID,
		BlockTitle: block.Title,
		Qty:        block.Qty,
		Questions:  questions,
	}, nil
}

// presentQuestions renders ids in frozen order. Questions disabled after the
// draw are still shown, loaded directly from the store.
func (s *ExamSessionService) presentQuestions(ctx context.Context, pool []model.Question, ids []int64) ([]model.CandidateQuestion, error) {
	byID := make(map[int64]model.Question, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		extra, err := s.exams.ListQuestionsByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load frozen questions: %w", err)
		}
		for _, q := range extra {
			byID[q.ID] = q
		}
	}

	out := make([]model.CandidateQuestion, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			continue // deleted from the bank
		}
		out = append(out, model.NewCandidateQuestion(q))
	}
	return out, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Answers
// ────────────────────────────────────────────────────────────────────────────

// SubmitAnswer records the candidate's option for a drawn question and
// reports whether it was correct.
func (s *ExamSessionService) SubmitAnswer(ctx context.Context, sess *model.Session, questionID, optionID int64) (bool, error) {
	now := s.now()
	if !sess.IsLive(now) {
		return false, model.ErrSessionNotLive
	}
	if sess.SelectedMap.Total() == 0 {
		return false, model.ErrSelectionNotInitialized
	}
	if !sess.SelectedMap.Contains(questionID) {
		return false, model.ErrQuestionNotAllowed
	}

	answered, err := s.answers.HasAnswer(ctx, sess.ID, questionID)
	if err != nil {
		return false, fmt.Errorf("check answer: %w", err)
	}
	if answered {
		return false, model.ErrAlreadyAnswered
	}

	opt, err := s.exams.GetOption(ctx, optionID)
	if err != nil {
		return false, fmt.Errorf("get option: %w", err)
	}
	if opt.QuestionID != questionID {
		return false, model.ErrOptionMismatch
	}

	answer := &model.Answer{
		SessionID:  sess.ID,
		QuestionID: questionID,
		OptionID:   optionID,
		IsCorrect:  opt.IsCorrect,
		AnsweredAt: now,
	}
	if err := s.answers.Record(ctx, answer); err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}

	s.publish(ctx, sess.ID, model.EventAnswered, map[string]interface{}{
		"question_id": questionID,
		"option_id":   optionID,
		"correct":     opt.IsCorrect,
	})
	return opt.IsCorrect, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Finishing
// ────────────────────────────────────────────────────────────────────────────

// FinishSession closes the session and returns its score. It has no liveness
// precondition and may be called repeatedly.
func (s *ExamSessionService) FinishSession(ctx context.Context, sess *model.Session) (*model.ScoreSummary, error) {
	finished, summary, err := s.sessions.Finish(ctx, sess.ID, s.now(), ComputeScore)
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("total", summary.TotalQuestions).
		Int("correct", summary.Correct).
		Float64("score", summary.ScorePercent).
		Msg("Session finished")

	s.revokePermission(ctx, finished)
	s.publish(ctx, sess.ID, model.EventFinished, map[string]interface{}{
		"score_percent": summary.ScorePercent,
	})
	return summary, nil
}

// ConsumePermission clears the candidate's exam permission without finishing.
func (s *ExamSessionService) ConsumePermission(ctx context.Context, sess *model.Session) {
	s.revokePermission(ctx, sess)
}

// revokePermission is best-effort: lookup or update failures are logged only.
func (s *ExamSessionService) revokePermission(ctx context.Context, sess *model.Session) bool {
	code := strings.TrimSpace(sess.CandidateCode)
	if code == "" {
		return false
	}

	log := s.log.With().Str("session_id", sess.ID.String()).Str("candidate_code", code).Logger()

	user, err := s.users.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Debug().Msg("No account for candidate code")
		} else {
			log.Warn().Err(err).Msg("Permission lookup failed")
		}
		return false
	}

	if !user.ShouldRevokePermission() {
		return false
	}

	if err := s.users.SetExamPermission(ctx, user.ID, false); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("Permission revocation failed")
		return false
	}

	log.Info().Int64("user_id", user.ID).Msg("Exam permission revoked")
	return true
}

// ────────────────────────────────────────────────────────────────────────────
// Read models
// ────────────────────────────────────────────────────────────────────────────

// SessionView is the candidate's view of their own session.
type SessionView struct {
	SessionID        uuid.UUID          `json:"session_id"`
	ExamID           int64              `json:"exam_id"`
	State            model.SessionState `json:"state"`
	StartedAt        time.Time          `json:"started_at"`
	EndsAt           time.Time          `json:"ends_at"`
	FinishedAt       *time.Time         `json:"finished_at,omitempty"`
	RemainingSeconds float64            `json:"remaining_seconds"`
	SelectedBlocks   []int64            `json:"selected_blocks"`
	Answered         int                `json:"answered"`
	ScorePercent     *float64           `json:"score_percent,omitempty"`
}

// Describe returns the session state used to resume a page reload.
func (s *ExamSessionService) Describe(ctx context.Context, sess *model.Session) (*SessionView, error) {
	answers, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	now := s.now()
	return &SessionView{
		SessionID:        sess.ID,
		ExamID:           sess.ExamID,
		State:            sess.State(now),
		StartedAt:        sess.StartedAt,
		EndsAt:           sess.EndsAt,
		FinishedAt:       sess.FinishedAt,
		RemainingSeconds: sess.Remaining(now).Seconds(),
		SelectedBlocks:   sess.SelectedMap.BlockIDs(),
		Answered:         len(answers),
		ScorePercent:     sess.ScorePercent,
	}, nil
}

func (s *ExamSessionService) publish(ctx context.Context, sessionID uuid.UUID, kind model.EventKind, detail map[string]interface{}) {
	ev := model.SessionEvent{
		SessionID: sessionID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Event publish failed")
	}
}
