package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultResultsPerPage = 50
	maxResultsPerPage     = 100
)

// ResultService serves the admin result listing and per-session breakdown.
type ResultService struct {
	exams    ExamStore
	sessions SessionStore
	answers  AnswerStore
	users    UserStore
	events   EventLog
	log      zerolog.Logger
}

// NewResultService creates a new ResultService. events may be nil.
func NewResultService(exams ExamStore, sessions SessionStore, answers AnswerStore, users UserStore, events EventLog, log zerolog.Logger) *ResultService {
	return &ResultService{
		exams:    exams,
		sessions: sessions,
		answers:  answers,
		users:    users,
		events:   events,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// List returns sessions newest first.
func (s *ResultService) List(ctx context.Context, q model.ResultListQuery) ([]model.ResultItem, *response.Pagination, error) {
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultResultsPerPage
	}
	if perPage > maxResultsPerPage {
		perPage = maxResultsPerPage
	}
	empty := response.NewPagination(page, perPage, 0)

	codes, ok, err := s.resolveCodes(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return []model.ResultItem{}, empty, nil
	}

	sessions, total, err := s.sessions.ListResults(ctx, model.ResultFilter{
		CandidateCodes: codes,
		Limit:          perPage,
		Offset:         (page - 1) * perPage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}

	personalIDs := s.personalIDs(ctx, sessions)

	items := make([]model.ResultItem, 0, len(sessions))
	for i := range sessions {
		item := resultItem(&sessions[i])
		item.PersonalID = personalIDs[strings.ToLower(item.CandidateCode)]
		items = append(items, item)
	}

	return items, response.NewPagination(page, perPage, total), nil
}

// resolveCodes turns the candidate_code and personal_id filters into a code
// list. ok is false when the filters can match nothing.
func (s *ResultService) resolveCodes(ctx context.Context, q model.ResultListQuery) ([]string, bool, error) {
	code := strings.TrimSpace(q.CandidateCode)
	personalID := strings.TrimSpace(q.PersonalID)

	if personalID == "" {
		if code == "" {
			return nil, true, nil
		}
		return []string{code}, true, nil
	}

	users, err := s.users.ListByPersonalID(ctx, personalID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve personal id: %w", err)
	}

	var codes []string
	for _, u := range users {
		if u.Code == "" {
			continue
		}
		if code != "" && !strings.EqualFold(u.Code, code) {
			continue
		}
		codes = append(codes, u.Code)
	}
	return codes, len(codes) > 0, nil
}

func (s *ResultService) personalIDs(ctx context.Context, sessions []model.Session) map[string]string {
	seen := make(map[string]struct{})
	var codes []string
	for _, sess := range sessions {
		c := strings.ToLower(sess.CandidateCode)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, sess.CandidateCode)
	}

	out := make(map[string]string, len(codes))
	if len(codes) == 0 {
		return out
	}

	users, err := s.users.ListByCodes(ctx, codes)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to resolve personal ids")
		return out
	}
	for _, u := range users {
		out[strings.ToLower(u.Code)] = u.PersonalID
	}
	return out
}

func resultItem(sess *model.Session) model.ResultItem {
	var score float64
	if sess.ScorePercent != nil {
		score = *sess.ScorePercent
	}
	return model.ResultItem{
		SessionID:          sess.ID,
		ExamID:             sess.ExamID,
		StartedAt:          sess.StartedAt,
		EndsAt:             sess.EndsAt,
		FinishedAt:         sess.FinishedAt,
		CandidateFirstName: sess.CandidateFirstName,
		CandidateLastName:  sess.CandidateLastName,
		CandidateCode:      sess.CandidateCode,
		ScorePercent:       score,
		Status:             sess.ResultStatus(),
	}
}

// Detail returns one session with its answer breakdown in selection order.
func (s *ResultService) Detail(ctx context.Context, sessionID uuid.UUID) (*model.ResultDetail, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	detail := &model.ResultDetail{ResultItem: resultItem(sess)}

	exam, err := s.exams.GetExam(ctx, sess.ExamID)
	switch {
	case err == nil:
		detail.ExamTitle = exam.Title
	case errors.Is(err, model.ErrNotFound):
	default:
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if code := sess.CandidateCode; code != "" {
		if u, err := s.users.GetByCode(ctx, code); err == nil {
			detail.PersonalID = u.PersonalID
		}
	}

	answers, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	detail.BlockStats = sess.BlockStats
	if detail.BlockStats == nil {
		detail.BlockStats = ComputeScore(sess, answers).BlockStats
	}

	questions, err := s.exams.ListQuestionsByIDs(ctx, sess.SelectedMap.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	detail.Answers = buildAnswerDetails(sess.SelectedMap, questions, answers)

	if s.events != nil {
		events, err := s.events.ListBySession(ctx, sess.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to load session events")
		} else {
			detail.Events = events
		}
	}

	return detail, nil
}

func buildAnswerDetails(selected model.SelectedMap, questions []model.Question, answers []model.Answer) []model.AnswerDetail {
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	answerByQuestion := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a
	}

	out := make([]model.AnswerDetail, 0, selected.Total())
	for _, blockID := range selected.BlockIDs() {
		ids, _ := selected.Get(blockID)
		for _, qid := range ids {
			q := byID[qid]
			d := model.AnswerDetail{
				BlockID:      blockID,
				QuestionID:   qid,
				QuestionCode: q.Code,
				QuestionText: q.Text,
				Options:      make([]model.AnswerOptionDetail, 0, len(q.Options)),
			}
			a, answered := answerByQuestion[qid]
			if answered {
				at := a.AnsweredAt
				d.Answered = true
				d.IsCorrect = a.IsCorrect
				d.AnsweredAt = &at
			}
			for _, o := range q.Options {
				d.Options = append(d.Options, model.AnswerOptionDetail{
					ID:        o.ID,
					Text:      o.Text,
					IsCorrect: o.IsCorrect,
					Selected:  answered && a.OptionID == o.ID,
				})
			}
			out = append(out, d)
		}
	}
	return out
}
