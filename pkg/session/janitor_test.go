package session

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJanitor(t *testing.T, c *Cache, maxIdle time.Duration) *Janitor {
	t.Helper()
	return NewJanitor(c, maxIdle, "@every 1h", zerolog.New(os.Stdout).Level(zerolog.Disabled))
}

func TestJanitor_StartStop(t *testing.T) {
	c := createTestCache(t, 10)
	j := createTestJanitor(t, c, time.Hour)

	require.NoError(t, j.Start())
	assert.Error(t, j.Start(), "double start must fail")

	require.NoError(t, j.Stop())
	assert.Error(t, j.Stop(), "double stop must fail")
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	c := createTestCache(t, 10)
	j := NewJanitor(c, time.Hour, "not a schedule", zerolog.New(os.Stdout).Level(zerolog.Disabled))

	assert.Error(t, j.Start())
}

func TestJanitor_SweepEvictsOnlyIdle(t *testing.T) {
	c := createTestCache(t, 10)
	j := createTestJanitor(t, c, time.Hour)

	require.NoError(t, c.Append("idle", Message{Role: "user", Content: "old"}))
	c.mu.Lock()
	c.sessions["idle"].lastActive = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	require.NoError(t, c.Append("active", Message{Role: "user", Content: "new"}))

	assert.Equal(t, 1, j.Sweep())
	assert.Empty(t, c.History("idle"))
	assert.Len(t, c.History("active"), 1)
}

func TestJanitor_Defaults(t *testing.T) {
	c := createTestCache(t, 10)
	j := NewJanitor(c, 0, "", zerolog.New(os.Stdout).Level(zerolog.Disabled))

	assert.Equal(t, DefaultMaxIdle, j.maxIdle)
	assert.Equal(t, "@every 10m", j.schedule)
}
