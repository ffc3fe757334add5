package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository/memory"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type countingSource struct {
	*memory.Store
	examLoads  atomic.Int32
	blockLoads atomic.Int32
}

func (s *countingSource) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	s.examLoads.Add(1)
	return s.Store.GetExam(ctx, examID)
}

func (s *countingSource) GetBlock(ctx context.Context, blockID int64) (*model.Block, error) {
	s.blockLoads.Add(1)
	return s.Store.GetBlock(ctx, blockID)
}

type bankFixture struct {
	mr    *miniredis.Miniredis
	src   *countingSource
	cache *QuestionBankCache
	exam  model.Exam
	block model.Block
}

func newBankFixture(t *testing.T) *bankFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	store := memory.New()
	exam := store.AddExam(model.Exam{Title: "Cloud Basics", DurationMinutes: 45, GatePassword: "hunter2"})
	block := store.AddBlock(model.Block{ExamID: exam.ID, Title: "Storage", Qty: 1, OrderIndex: 1, Enabled: true})
	store.AddQuestion(model.Question{
		BlockID: block.ID,
		Code:    "S1",
		Text:    "Which tier is cheapest?",
		Enabled: true,
		Options: []model.Option{{Text: "Archive", IsCorrect: true}, {Text: "Hot"}},
	})

	src := &countingSource{Store: store}
	return &bankFixture{
		mr:    mr,
		src:   src,
		cache: NewQuestionBankCache(rdb, src, time.Minute, zerolog.Nop()),
		exam:  exam,
		block: block,
	}
}

func TestGetExamServesFromCacheAfterFirstLoad(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exam, err := f.cache.GetExam(ctx, f.exam.ID)
		if err != nil {
			t.Fatalf("GetExam: %v", err)
		}
		if exam.Title != "Cloud Basics" {
			t.Fatalf("unexpected title %q", exam.Title)
		}
	}
	if got := f.src.examLoads.Load(); got != 1 {
		t.Fatalf("expected one source load, got %d", got)
	}
	if !f.mr.Exists(config.CacheKey.QuestionBankExamKey(f.exam.ID)) {
		t.Fatal("exam entry not written to redis")
	}
}

func TestGetExamNeverReturnsGatePassword(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	first, err := f.cache.GetExam(ctx, f.exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	second, err := f.cache.GetExam(ctx, f.exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if first.GatePassword != "" || second.GatePassword != "" {
		t.Fatal("gate password leaked through the cache")
	}

	raw, err := f.mr.Get(config.CacheKey.QuestionBankExamKey(f.exam.ID))
	if err != nil {
		t.Fatalf("read raw entry: %v", err)
	}
	if strings.Contains(raw, "hunter2") {
		t.Fatal("gate password stored in redis")
	}
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.cache.ListBlockQuestions(ctx, f.block.ID); err != nil {
				t.Errorf("ListBlockQuestions: %v", err)
			}
		}()
	}
	wg.Wait()

	// A caller arriving after the flight finished reads redis, so at most one
	// load happens.
	if got := f.src.blockLoads.Load(); got != 1 {
		t.Fatalf("expected one block load, got %d", got)
	}
}

func TestNotFoundIsPassedThroughAndNotCached(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.cache.GetExam(ctx, 9999)
		if !errors.Is(err, model.ErrExamNotFound) {
			t.Fatalf("expected ErrExamNotFound, got %v", err)
		}
	}
	if got := f.src.examLoads.Load(); got != 2 {
		t.Fatalf("misses must not be cached, got %d loads", got)
	}
}

func TestInvalidateExamDropsExamAndBlockEntries(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	if _, err := f.cache.GetExam(ctx, f.exam.ID); err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if _, err := f.cache.GetBlock(ctx, f.block.ID); err != nil {
		t.Fatalf("GetBlock: %v", err)
	}

	if err := f.cache.InvalidateExam(ctx, f.exam.ID); err != nil {
		t.Fatalf("InvalidateExam: %v", err)
	}
	for _, key := range []string{
		config.CacheKey.QuestionBankExamKey(f.exam.ID),
		config.CacheKey.QuestionBankBlockKey(f.block.ID),
		config.CacheKey.QuestionBankExamBlocksKey(f.exam.ID),
	} {
		if f.mr.Exists(key) {
			t.Fatalf("key %s survived invalidation", key)
		}
	}

	if _, err := f.cache.GetExam(ctx, f.exam.ID); err != nil {
		t.Fatalf("GetExam after invalidate: %v", err)
	}
	if got := f.src.examLoads.Load(); got != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", got)
	}
}

func TestPrewarmLoadsExamsAndBlocks(t *testing.T) {
	f := newBankFixture(t)
	ctx := context.Background()

	warmed := f.cache.Prewarm(ctx, []int64{f.exam.ID, 4242})
	if warmed != 1 {
		t.Fatalf("expected 1 exam warmed, got %d", warmed)
	}
	if !f.mr.Exists(config.CacheKey.QuestionBankBlockKey(f.block.ID)) {
		t.Fatal("block not prewarmed")
	}

	ttl := f.mr.TTL(config.CacheKey.QuestionBankBlockKey(f.block.ID))
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("ttl %s outside jitter window", ttl)
	}

	questions, err := f.cache.ListBlockQuestions(ctx, f.block.ID)
	if err != nil {
		t.Fatalf("ListBlockQuestions: %v", err)
	}
	if len(questions) != 1 || len(questions[0].Options) != 2 {
		t.Fatalf("unexpected cached questions: %+v", questions)
	}
	if got := f.src.blockLoads.Load(); got != 1 {
		t.Fatalf("expected prewarmed block to be served from cache, got %d loads", got)
	}
}

func TestRedisOutageFallsBackToSource(t *testing.T) {
	f := newBankFixture(t)
	f.mr.Close()

	exam, err := f.cache.GetExam(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("expected source fallback, got %v", err)
	}
	if exam.Title != "Cloud Basics" {
		t.Fatalf("unexpected title %q", exam.Title)
	}
}
