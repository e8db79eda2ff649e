package repositories

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextCreatedAt_StrictlyIncreasing(t *testing.T) {
	// 同一マイクロ秒内の連続呼び出しでも作成日時は衝突しない
	prev := nextCreatedAt()
	for i := 0; i < 1000; i++ {
		next := nextCreatedAt()
		require.True(t, next.After(prev), "created_at must be strictly increasing")
		prev = next
	}
}

func TestNextCreatedAt_UniqueUnderConcurrency(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ts := nextCreatedAt()
				mu.Lock()
				stamps = append(stamps, ts)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < len(stamps); i++ {
		require.True(t, stamps[i].After(stamps[i-1]),
			"concurrent inserts must not share a created_at")
	}
}
