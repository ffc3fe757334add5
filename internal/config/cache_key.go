package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionBankBlockKey returns the cache key for a block's enabled question pool.
func (r *CacheKeyStruct) QuestionBankBlockKey(blockID int64) string {
	return fmt.Sprintf("bank:block:%d:questions", blockID)
}

// QuestionBankExamKey returns the cache key for an exam's header and enabled blocks.
func (r *CacheKeyStruct) QuestionBankExamKey(examID int64) string {
	return fmt.Sprintf("bank:exam:%d", examID)
}

// QuestionBankExamBlocksKey returns the set of block keys cached for an exam.
func (r *CacheKeyStruct) QuestionBankExamBlocksKey(examID int64) string {
	return fmt.Sprintf("bank:exam:%d:blocks", examID)
}

// RateLimitKey returns the fixed-window counter key for a client and scope.
func (r *CacheKeyStruct) RateLimitKey(scope, clientID string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, clientID, window)
}

// AdminSessionKey returns the cache key holding an admin's active JWT ID.
func (r *CacheKeyStruct) AdminSessionKey(userID int64) string {
	return fmt.Sprintf("admin:%d:session", userID)
}

var CacheKey = NewCacheKeyStruct()
