package trinity

import "sync"

// sessionTokenWindow is the bounded history size per session (spec §3: "a
// rolling window of the last N (≈100) samples").
const sessionTokenWindow = 100

type sessionTokenState struct {
	running int64
	samples []int
}

// SessionTokenCounter tracks a per-session running token total with a
// bounded sample history, used for drift detection. Writes are
// single-writer-per-session via a dedicated mutex, per spec §5's shared
// resource model; reads take a short lock.
type SessionTokenCounter struct {
	mu       sync.Mutex
	sessions map[string]*sessionTokenState
}

// NewSessionTokenCounter creates an empty counter.
func NewSessionTokenCounter() *SessionTokenCounter {
	return &SessionTokenCounter{sessions: make(map[string]*sessionTokenState)}
}

// Add attributes n tokens to sessionID, appending n to the rolling sample
// window (dropping the oldest sample once the window is full).
func (c *SessionTokenCounter) Add(sessionID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		s = &sessionTokenState{}
		c.sessions[sessionID] = s
	}

	s.running += int64(n)
	s.samples = append(s.samples, n)
	if len(s.samples) > sessionTokenWindow {
		s.samples = s.samples[1:]
	}
}

// Total returns the running token total for a session.
func (c *SessionTokenCounter) Total(sessionID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		return s.running
	}
	return 0
}

// Samples returns a copy of the rolling window for a session.
func (c *SessionTokenCounter) Samples(sessionID string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]int, len(s.samples))
	copy(out, s.samples)
	return out
}
