package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("usage:1", int64(42), time.Minute)
	v, ok := c.Get("usage:1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("usage:1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestMemoryCacheCleanup(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Hour)

	now = now.Add(time.Minute)
	c.cleanup()
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	c.Close()
	c.Close()
}
