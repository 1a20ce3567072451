// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package seq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterStartsAtZero(t *testing.T) {
	var c Counter

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())
}

func TestCounterConcurrentNextIsUnique(t *testing.T) {
	const workers, perWorker = 8, 1000

	var c Counter
	var wg sync.WaitGroup
	results := make(chan int64, workers*perWorker)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- c.Next()
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[int64]struct{}, workers*perWorker)
	for g := range results {
		_, dup := seen[g]
		require.False(t, dup, "generation %d handed out twice", g)
		seen[g] = struct{}{}
	}

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}
