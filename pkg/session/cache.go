package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rayhq/docuchat/internal/observability"
)

// DefaultWindow is the number of messages a session retains.
const DefaultWindow = 40

// ErrInvalidKey indicates an empty session key.
var ErrInvalidKey = errors.New("session key cannot be empty")

// Message represents a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// memory holds one session's windowed history. Each memory carries its
// own lock so appends to distinct sessions do not contend.
type memory struct {
	mu         sync.Mutex
	messages   []Message
	lastActive time.Time
}

// Cache is an in-process session store. Histories are bounded FIFO
// windows; once full, the oldest message is evicted per append.
type Cache struct {
	mu       sync.Mutex
	sessions map[string]*memory
	window   int
	logger   zerolog.Logger
}

// NewCache creates a session cache with the given window size.
func NewCache(window int, logger zerolog.Logger) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	observability.EnsureRegistered()

	return &Cache{
		sessions: make(map[string]*memory),
		window:   window,
		logger:   logger,
	}
}

// Window returns the configured window size.
func (c *Cache) Window() int {
	return c.window
}

// GetOrCreate ensures a session exists and reports whether this call
// created it. Creation is atomic: concurrent callers with the same key
// see exactly one true.
func (c *Cache) GetOrCreate(sessionKey string) (bool, error) {
	if sessionKey == "" {
		return false, ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[sessionKey]; ok {
		return false, nil
	}

	c.sessions[sessionKey] = &memory{lastActive: time.Now()}
	observability.SetActiveSessions(len(c.sessions))

	c.logger.Debug().Str("session", sessionKey).Msg("Session created")
	return true, nil
}

// Append adds a message to a session, creating the session if needed.
// When the window is full the oldest message is dropped.
func (c *Cache) Append(sessionKey string, msg Message) error {
	if sessionKey == "" {
		return ErrInvalidKey
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	m := c.getOrCreateMemory(sessionKey)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
	if len(m.messages) > c.window {
		m.messages = m.messages[len(m.messages)-c.window:]
	}
	m.lastActive = time.Now()

	return nil
}

func (c *Cache) getOrCreateMemory(sessionKey string) *memory {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.sessions[sessionKey]
	if !ok {
		m = &memory{lastActive: time.Now()}
		c.sessions[sessionKey] = m
		observability.SetActiveSessions(len(c.sessions))
	}
	return m
}

// History returns a snapshot copy of a session's messages, oldest
// first. An unknown session yields an empty slice.
func (c *Cache) History(sessionKey string) []Message {
	c.mu.Lock()
	m, ok := c.sessions[sessionKey]
	c.mu.Unlock()

	if !ok {
		return []Message{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages held for a session.
func (c *Cache) Len(sessionKey string) int {
	c.mu.Lock()
	m, ok := c.sessions[sessionKey]
	c.mu.Unlock()

	if !ok {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Clear removes a session. Clearing an unknown session is a no-op.
func (c *Cache) Clear(sessionKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[sessionKey]; !ok {
		return
	}

	delete(c.sessions, sessionKey)
	observability.SetActiveSessions(len(c.sessions))

	c.logger.Debug().Str("session", sessionKey).Msg("Session cleared")
}

// Sessions returns the keys of all live sessions.
func (c *Cache) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.sessions))
	for k := range c.sessions {
		keys = append(keys, k)
	}
	return keys
}

// EvictIdle removes sessions whose last activity is older than maxIdle
// and returns how many were evicted.
func (c *Cache) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, m := range c.sessions {
		m.mu.Lock()
		idle := m.lastActive.Before(cutoff)
		m.mu.Unlock()

		if idle {
			delete(c.sessions, key)
			evicted++
		}
	}

	if evicted > 0 {
		observability.SetActiveSessions(len(c.sessions))
		c.logger.Info().Int("evicted", evicted).Msg("Idle sessions evicted")
	}
	return evicted
}
