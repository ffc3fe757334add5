// Package memory is an in-process implementation of the exam stores. A single
// mutex gives it the same atomicity guarantees as the Postgres repositories,
// which makes the session invariants testable without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
)

type answerKey struct {
	session  uuid.UUID
	question int64
}

// Store holds every table of the engine in memory.
type Store struct {
	mu sync.Mutex

	nextID int64

	exams     map[int64]*model.Exam
	blocks    map[int64]*model.Block
	questions map[int64]*model.Question
	options   map[int64]*model.Option
	codes     []*model.ExamCode
	sessions  map[uuid.UUID]*model.Session
	answers   []model.Answer
	answered  map[answerKey]struct{}
	users     map[int64]*model.User

	permissionErr error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		exams:     make(map[int64]*model.Exam),
		blocks:    make(map[int64]*model.Block),
		questions: make(map[int64]*model.Question),
		options:   make(map[int64]*model.Option),
		sessions:  make(map[uuid.UUID]*model.Session),
		answered:  make(map[answerKey]struct{}),
		users:     make(map[int64]*model.User),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ─── Seeding ───────────────────────────────────────────────────────

// AddExam inserts e, assigning an id when it has none.
func (s *Store) AddExam(e model.Exam) model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.exams[e.ID] = &e
	return e
}

// AddBlock inserts b, assigning an id when it has none.
func (s *Store) AddBlock(b model.Block) model.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	s.blocks[b.ID] = &b
	return b
}

// AddQuestion inserts q and its options, assigning ids where missing.
func (s *Store) AddQuestion(q model.Question) model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == 0 {
		q.ID = s.id()
	}
	opts := make([]model.Option, len(q.Options))
	for i, o := range q.Options {
		if o.ID == 0 {
			o.ID = s.id()
		}
		o.QuestionID = q.ID
		opts[i] = o
		stored := o
		s.options[o.ID] = &stored
	}
	q.Options = opts

	stored := q
	stored.Options = nil
	s.questions[q.ID] = &stored
	return q
}

// SetQuestionEnabled toggles a question's enabled flag.
func (s *Store) SetQuestionEnabled(questionID int64, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[questionID]; ok {
		q.Enabled = enabled
	}
}

// AddCode stores a hashed access code for an exam.
func (s *Store) AddCode(examID int64, hash string) model.ExamCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addCode(examID, hash)
}

func (s *Store) addCode(examID int64, hash string) *model.ExamCode {
	c := &model.ExamCode{
		ID:        s.id(),
		ExamID:    examID,
		CodeHash:  hash,
		CreatedAt: time.Now().UTC(),
	}
	s.codes = append(s.codes, c)
	return c
}

// Code returns a copy of the code with the given id.
func (s *Store) Code(codeID int64) (model.ExamCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ID == codeID {
			return *c, true
		}
	}
	return model.ExamCode{}, false
}

// ExpireSession moves a session's deadline to at.
func (s *Store) ExpireSession(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.EndsAt = at
	}
}

// FailPermissionUpdates makes SetExamPermission return err. Nil restores it.
func (s *Store) FailPermissionUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionErr = err
}

// ─── Question bank ─────────────────────────────────────────────────

func (s *Store) GetExam(_ context.Context, examID int64) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[examID]
	if !ok {
		return nil, model.ErrExamNotFound
	}
	out := *e
	return &out, nil
}

func (s *Store) ListExamIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.exams))
	for id := range s.exams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ListEnabledBlocks(_ context.Context, examID int64) ([]model.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Block
	for _, b := range s.blocks {
		if b.ExamID == examID && b.Enabled {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetBlock(_ context.Context, blockID int64) (*model.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[blockID]
	if !ok {
		return nil, model.ErrBlockNotFound
	}
	out := *b
	return &out, nil
}

func (s *Store) ListBlockQuestions(_ context.Context, blockID int64) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if q.BlockID == blockID && q.Enabled {
			out = append(out, s.withOptions(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListQuestionsByIDs(_ context.Context, ids []int64) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, s.withOptions(q))
		}
	}
	return out, nil
}

func (s *Store) withOptions(q *model.Question) model.Question {
	out := *q
	out.Options = nil
	for _, o := range s.options {
		if o.QuestionID == q.ID {
			out.Options = append(out.Options, *o)
		}
	}
	sort.Slice(out.Options, func(i, j int) bool { return out.Options[i].ID < out.Options[j].ID })
	return out
}

func (s *Store) GetOption(_ context.Context, optionID int64) (*model.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[optionID]
	if !ok {
		return nil, model.ErrOptionNotFound
	}
	out := *o
	return &out, nil
}

func (s *Store) UpdateExamSettings(_ context.Context, examID int64, patch model.ExamSettingsPatch) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[examID]
	if !ok {
		return nil, model.ErrExamNotFound
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.DurationMinutes != nil {
		e.DurationMinutes = *patch.DurationMinutes
	}
	if patch.GatePassword != nil {
		e.GatePassword = *patch.GatePassword
	}
	out := *e
	return &out, nil
}

// ─── Codes ─────────────────────────────────────────────────────────

func (s *Store) ListRedeemableCodes(_ context.Context, examID int64) ([]model.ExamCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExamCode
	for _, c := range s.codes {
		if c.ExamID == examID && c.Redeemable() {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Store) InsertCodes(_ context.Context, examID int64, hashes []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		s.addCode(examID, h)
	}
	return len(hashes), nil
}

// ─── Sessions ──────────────────────────────────────────────────────

func (s *Store) CreateWithCode(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.CodeID == nil {
		return fmt.Errorf("%w: session has no code", model.ErrBadRequest)
	}
	var code *model.ExamCode
	for _, c := range s.codes {
		if c.ID == *sess.CodeID {
			code = c
			break
		}
	}
	if code == nil {
		return model.ErrInvalidCode
	}
	if !code.Redeemable() {
		return model.ErrCodeAlreadyUsed
	}
	for _, other := range s.sessions {
		if other.CodeID != nil && *other.CodeID == code.ID && other.IsLive(sess.StartedAt) {
			return model.ErrActiveSessionExists
		}
	}

	usedAt := sess.StartedAt
	code.Used = true
	code.UsedAt = &usedAt
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) Create(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("%w: session exists", model.ErrConflict)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *Store) FreezeSelection(_ context.Context, id uuid.UUID, blockID int64, now time.Time, draw func() ([]int64, error)) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if ids, ok := sess.SelectedMap.Get(blockID); ok {
		return append([]int64(nil), ids...), nil
	}
	if !sess.IsLive(now) {
		return nil, model.ErrSessionNotLive
	}

	drawn, err := draw()
	if err != nil {
		return nil, err
	}
	ids := append([]int64(nil), drawn...)
	if sess.SelectedMap == nil {
		sess.SelectedMap = model.SelectedMap{}
	}
	sess.SelectedMap[fmt.Sprint(blockID)] = ids
	return append([]int64(nil), ids...), nil
}

func (s *Store) Finish(_ context.Context, id uuid.UUID, finishedAt time.Time, score model.ScoreFunc) (*model.Session, *model.ScoreSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, model.ErrSessionNotFound
	}

	at := finishedAt
	sess.Active = false
	sess.FinishedAt = &at

	summary := score(cloneSession(sess), s.answersOf(id))
	pct := summary.ScorePercent
	sess.ScorePercent = &pct
	sess.BlockStats = append([]model.BlockStat{}, summary.BlockStats...)

	return cloneSession(sess), &summary, nil
}

func (s *Store) ListResults(_ context.Context, filter model.ResultFilter) ([]model.Session, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := make(map[string]struct{}, len(filter.CandidateCodes))
	for _, c := range filter.CandidateCodes {
		codes[strings.ToLower(c)] = struct{}{}
	}

	var matched []model.Session
	for _, sess := range s.sessions {
		if len(codes) > 0 {
			if _, ok := codes[strings.ToLower(sess.CandidateCode)]; !ok {
				continue
			}
		}
		matched = append(matched, *cloneSession(sess))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.After(matched[j].StartedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func cloneSession(sess *model.Session) *model.Session {
	out := *sess
	out.SelectedMap = sess.SelectedMap.Clone()
	if sess.CodeID != nil {
		v := *sess.CodeID
		out.CodeID = &v
	}
	if sess.FinishedAt != nil {
		v := *sess.FinishedAt
		out.FinishedAt = &v
	}
	if sess.ScorePercent != nil {
		v := *sess.ScorePercent
		out.ScorePercent = &v
	}
	if sess.BlockStats != nil {
		out.BlockStats = append([]model.BlockStat{}, sess.BlockStats...)
	}
	return &out
}

// ─── Answers ───────────────────────────────────────────────────────

func (s *Store) HasAnswer(_ context.Context, sessionID uuid.UUID, questionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answered[answerKey{sessionID, questionID}]
	return ok, nil
}

func (s *Store) Record(_ context.Context, a *model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[a.SessionID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if !sess.IsLive(a.AnsweredAt) {
		return model.ErrSessionNotLive
	}
	key := answerKey{a.SessionID, a.QuestionID}
	if _, dup := s.answered[key]; dup {
		return model.ErrAlreadyAnswered
	}

	a.ID = s.id()
	s.answered[key] = struct{}{}
	s.answers = append(s.answers, *a)
	return nil
}

func (s *Store) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answersOf(sessionID), nil
}

func (s *Store) answersOf(sessionID uuid.UUID) []model.Answer {
	var out []model.Answer
	for _, a := range s.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out
}

// ─── Users ─────────────────────────────────────────────────────────

// Users is the account table of a Store.
type Users struct {
	s *Store
}

// Users returns the store's account table.
func (s *Store) Users() *Users {
	return &Users{s: s}
}

// AddUser inserts u and returns it with its id.
func (s *Store) AddUser(u model.User) model.User {
	_ = s.Users().Create(context.Background(), &u)
	return u
}

func (us *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (us *Users) GetByCode(_ context.Context, code string) (*model.User, error) {
	return us.findUser(func(u *model.User) bool { return u.Code != "" && strings.EqualFold(u.Code, code) })
}

func (us *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return us.findUser(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (us *Users) findUser(match func(*model.User) bool) (*model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if u := s.users[id]; match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (us *Users) ListByPersonalID(_ context.Context, personalID string) ([]model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if u.PersonalID == personalID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (us *Users) ListByCodes(_ context.Context, codes []string) ([]model.User, error) {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[strings.ToLower(c)] = struct{}{}
	}
	var out []model.User
	for _, u := range s.users {
		if _, ok := want[strings.ToLower(u.Code)]; ok && u.Code != "" {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (us *Users) SetExamPermission(_ context.Context, userID int64, allowed bool) error {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissionErr != nil {
		return s.permissionErr
	}
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ExamPermission = allowed
	return nil
}

func (us *Users) Create(_ context.Context, u *model.User) error {
	s := us.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
	}
	u.ID = s.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}
