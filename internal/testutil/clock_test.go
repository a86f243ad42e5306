package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
)

var _ history.Sequencer = (*DeterministicClock)(nil)

func TestDeterministicClock_NextAndReset(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 50, 40

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*calls)
	for i := int64(1); i <= workers*calls; i++ {
		assert.True(t, seen[i], "missing value %d", i)
	}
}

func TestSteppingTime(t *testing.T) {
	clock := NewSteppingTime(time.Time{}, 5*time.Millisecond)

	first := clock.Now()
	second := clock.Now()

	assert.Equal(t, Epoch, first)
	assert.Equal(t, 5*time.Millisecond, second.Sub(first))
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "s-1", NewFixedIDGenerator("s-1").Generate())
	assert.Equal(t, "test-session-default", NewFixedIDGenerator("").Generate())
}
