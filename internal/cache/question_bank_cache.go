// Package cache provides a Redis read-through cache over the question bank.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Source is the uncached question bank.
type Source interface {
	GetExam(ctx context.Context, examID int64) (*model.Exam, error)
	ListEnabledBlocks(ctx context.Context, examID int64) ([]model.Block, error)
	GetBlock(ctx context.Context, blockID int64) (*model.Block, error)
	ListBlockQuestions(ctx context.Context, blockID int64) ([]model.Question, error)
}

// examEntry is cached under QuestionBankExamKey. The gate password is never
// cached.
type examEntry struct {
	Exam   model.Exam    `json:"exam"`
	Blocks []model.Block `json:"blocks"`
}

// blockEntry is cached under QuestionBankBlockKey.
type blockEntry struct {
	Block     model.Block      `json:"block"`
	Questions []model.Question `json:"questions"`
}

// QuestionBankCache serves exam and block reads from Redis, loading misses
// from the source once per key across concurrent callers. Redis failures fall
// back to the source.
type QuestionBankCache struct {
	rdb *redis.Client
	src Source
	ttl time.Duration
	sf  singleflight.Group
	log zerolog.Logger
}

// NewQuestionBankCache creates a new QuestionBankCache.
func NewQuestionBankCache(rdb *redis.Client, src Source, ttl time.Duration, log zerolog.Logger) *QuestionBankCache {
	return &QuestionBankCache{
		rdb: rdb,
		src: src,
		ttl: ttl,
		log: log.With().Str("component", "question_bank_cache").Logger(),
	}
}

// GetExam returns the exam header. GatePassword is always empty.
func (c *QuestionBankCache) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	e, err := c.exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	exam := e.Exam
	return &exam, nil
}

// ListEnabledBlocks returns the exam's enabled blocks in order.
func (c *QuestionBankCache) ListEnabledBlocks(ctx context.Context, examID int64) ([]model.Block, error) {
	e, err := c.exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return append([]model.Block(nil), e.Blocks...), nil
}

// GetBlock returns a block whether or not it is enabled.
func (c *QuestionBankCache) GetBlock(ctx context.Context, blockID int64) (*model.Block, error) {
	b, err := c.block(ctx, blockID)
	if err != nil {
		return nil, err
	}
	block := b.Block
	return &block, nil
}

// ListBlockQuestions returns the block's enabled questions with options.
func (c *QuestionBankCache) ListBlockQuestions(ctx context.Context, blockID int64) ([]model.Question, error) {
	b, err := c.block(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return append([]model.Question(nil), b.Questions...), nil
}

func (c *QuestionBankCache) exam(ctx context.Context, examID int64) (*examEntry, error) {
	key := config.CacheKey.QuestionBankExamKey(examID)

	var entry examEntry
	if c.get(ctx, key, &entry) {
		return &entry, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached examEntry
		if c.get(ctx, key, &cached) {
			return &cached, nil
		}

		exam, err := c.src.GetExam(ctx, examID)
		if err != nil {
			return nil, err
		}
		blocks, err := c.src.ListEnabledBlocks(ctx, examID)
		if err != nil {
			return nil, err
		}

		loaded := &examEntry{Exam: *exam, Blocks: blocks}
		loaded.Exam.GatePassword = ""
		c.set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*examEntry), nil
}

func (c *QuestionBankCache) block(ctx context.Context, blockID int64) (*blockEntry, error) {
	key := config.CacheKey.QuestionBankBlockKey(blockID)

	var entry blockEntry
	if c.get(ctx, key, &entry) {
		return &entry, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached blockEntry
		if c.get(ctx, key, &cached) {
			return &cached, nil
		}

		block, err := c.src.GetBlock(ctx, blockID)
		if err != nil {
			return nil, err
		}
		questions, err := c.src.ListBlockQuestions(ctx, blockID)
		if err != nil {
			return nil, err
		}

		loaded := &blockEntry{Block: *block, Questions: questions}
		c.set(ctx, key, loaded)
		if err := c.rdb.SAdd(ctx, config.CacheKey.QuestionBankExamBlocksKey(block.ExamID), key).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to index block cache key")
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*blockEntry), nil
}

func (c *QuestionBankCache) get(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		c.rdb.Del(ctx, key)
		return false
	}
	return true
}

func (c *QuestionBankCache) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// ttlWithJitter spreads expiries by up to 10% so prewarmed keys do not all
// expire together.
func (c *QuestionBankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

// InvalidateExam drops the exam entry and every block entry cached for it.
func (c *QuestionBankCache) InvalidateExam(ctx context.Context, examID int64) error {
	indexKey := config.CacheKey.QuestionBankExamBlocksKey(examID)
	blockKeys, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list cached blocks: %w", err)
	}

	keys := append(blockKeys, config.CacheKey.QuestionBankExamKey(examID), indexKey)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate exam %d: %w", examID, err)
	}
	return nil
}

// Prewarm loads every given exam and its enabled blocks into the cache.
// Exams that fail to load are logged and skipped.
func (c *QuestionBankCache) Prewarm(ctx context.Context, examIDs []int64) int {
	warmed := 0
	for _, examID := range examIDs {
		log := c.log.With().Int64("exam_id", examID).Logger()

		e, err := c.exam(ctx, examID)
		if err != nil {
			log.Warn().Err(err).Msg("Prewarm failed for exam")
			continue
		}
		for _, b := range e.Blocks {
			if _, err := c.block(ctx, b.ID); err != nil {
				log.Warn().Err(err).Int64("block_id", b.ID).Msg("Prewarm failed for block")
			}
		}
		warmed++
	}
	c.log.Info().Int("exams", warmed).Msg("Question bank cache warmed")
	return warmed
}
