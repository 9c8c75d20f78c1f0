package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleCacheBasics(t *testing.T) {
	c := NewSimple[int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	assert.True(t, c.Set("a", 1))
	assert.False(t, c.Set("a", 2), "overwrite is not a new entry")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 0, c.Len())
}

func TestSimpleCacheClearAndKeys(t *testing.T) {
	c := NewSimple[string]()
	c.Set("x", "1")
	c.Set("y", "2")

	assert.ElementsMatch(t, []string{"x", "y"}, c.Keys())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestStatistics(t *testing.T) {
	c := NewSimple[int]()

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")
	c.Delete("a")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.Equal(t, int64(1), stats.Deletes())
	assert.Equal(t, int64(0), stats.Size())
	assert.Equal(t, int64(1), stats.MaxSize())
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestConcurrentAccess(t *testing.T) {
	c := NewSimple[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + n))
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, c.Len())
}
