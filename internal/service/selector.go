package service

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Selector draws question subsets. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a Selector seeded from crypto/rand.
func NewSelector() *Selector {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return &Selector{rng: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededSelector returns a deterministic Selector.
func NewSeededSelector(seed uint64) *Selector {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:8], seed)
	return &Selector{rng: rand.New(rand.NewChaCha8(s))}
}

// Draw picks min(n, len(pool)) ids uniformly without replacement and returns
// them in shuffled order. pool is not modified.
func (s *Selector) Draw(pool []int64, n int) []int64 {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return []int64{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := append([]int64(nil), pool...)
	// Partial Fisher-Yates: the first n slots become the sample.
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	picked := work[:n:n]
	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked
}
