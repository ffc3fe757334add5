package service

import (
	"sync"
	"testing"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository/memory"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture is one exam with a single block of three questions (A, B, C),
// each with one correct and one wrong option.
type fixture struct {
	store    *memory.Store
	clock    *testClock
	hasher   *Hasher
	sessions *ExamSessionService

	exam      model.Exam
	block     model.Block
	questions map[string]model.Question
}

func newFixture(t *testing.T, qty int) *fixture {
	t.Helper()

	store := memory.New()
	clock := newTestClock()
	hasher := NewHasher(bcrypt.MinCost)

	exam := store.AddExam(model.Exam{Title: "Network Fundamentals", DurationMinutes: 60, GatePassword: "open-sesame"})
	block := store.AddBlock(model.Block{ExamID: exam.ID, Title: "Routing", Qty: qty, OrderIndex: 1, Enabled: true})

	questions := make(map[string]model.Question)
	for i, code := range []string{"A", "B", "C"} {
		questions[code] = store.AddQuestion(model.Question{
			BlockID:    block.ID,
			Code:       code,
			Text:       "Question " + code,
			OrderIndex: i,
			Enabled:    true,
			Options: []model.Option{
				{Text: code + " right", IsCorrect: true},
				{Text: code + " wrong", IsCorrect: false},
			},
		})
	}

	svc := NewExamSessionService(ExamSessionDeps{
		Exams:    store,
		Codes:    store,
		Sessions: store,
		Answers:  store,
		Users:    store.Users(),
		Hasher:   hasher,
		Selector: NewSeededSelector(42),
	}, zerolog.Nop())
	svc.now = clock.Now

	return &fixture{
		store:     store,
		clock:     clock,
		hasher:    hasher,
		sessions:  svc,
		exam:      exam,
		block:     block,
		questions: questions,
	}
}

func (f *fixture) addCode(t *testing.T, plain string) model.ExamCode {
	t.Helper()
	hash, err := f.hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash code: %v", err)
	}
	return f.store.AddCode(f.exam.ID, hash)
}

// openSession starts a code-less session and loads it back.
func (f *fixture) openSession(t *testing.T, candidateCode string) *model.Session {
	t.Helper()
	grant, err := f.sessions.StartSession(t.Context(), f.exam.ID, model.CandidateMeta{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Code:      candidateCode,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	sess, err := f.sessions.Authenticate(t.Context(), grant.SessionID, grant.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return sess
}

func (f *fixture) questionByID(t *testing.T, id int64) model.Question {
	t.Helper()
	for _, q := range f.questions {
		if q.ID == id {
			return q
		}
	}
	t.Fatalf("question %d not in fixture", id)
	return model.Question{}
}

func correctOption(q model.Question) model.Option {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o
		}
	}
	return model.Option{}
}

func wrongOption(q model.Question) model.Option {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o
		}
	}
	return model.Option{}
}
