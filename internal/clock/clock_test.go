package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsMonotone(t *testing.T) {
	var c Logical
	prev := c.Next()
	for i := 0; i < 100; i++ {
		next := c.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestObserveTakesMaxPlusOne(t *testing.T) {
	var c Logical
	c.Next() // local = 1

	got := c.Observe(100)
	assert.Equal(t, uint64(101), got)

	// a remote clock behind local still advances local by one.
	got = c.Observe(5)
	assert.Equal(t, uint64(102), got)
}

func TestConcurrentAccessNeverIssuesDuplicates(t *testing.T) {
	var c Logical
	var wg sync.WaitGroup
	results := make(chan uint64, 1000)

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results <- c.Next()
			} else {
				results <- c.Observe(uint64(i))
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool)
	for v := range results {
		assert.False(t, seen[v], "clock value %d issued twice", v)
		seen[v] = true
	}
}
