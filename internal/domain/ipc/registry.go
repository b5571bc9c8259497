package ipc

import (
	"sync"
	"time"
)

// Sender abstracts the outbound half of a live connection so Registry does
// not need to know about websockets. A real adapter implements this over a
// gorilla/websocket connection guarded by its own write mutex.
type Sender interface {
	Send(msg *Message) error
	Close(code int, reason string) error
}

// Connection is everything the registry tracks about one accepted client.
type Connection struct {
	ID          string
	UserID      string
	Sender      Sender
	ConnectedAt time.Time
	LastSeenMs  int64
	ClientID    string
	InstanceID  string
	Platform    string
	IPAddress   string
	UserAgent   string
	DaemonGptID string
}

// MetadataPatch mirrors the optional hello/updateMetadata fields.
type MetadataPatch struct {
	ClientID    string
	InstanceID  string
	Platform    string
	IPAddress   string
	UserAgent   string
	DaemonGptID string
}

// DispatchResult is the outcome of a per-user fan-out (spec §4.7 sendCommandToUser).
type DispatchResult struct {
	OK            bool
	SentCount     int
	ConnectionIDs []string
	Error         string
}

// Registry is the thread-safe connection table shared by the accept loop,
// the receive loop (heartbeat touch), the reaper, and the command
// dispatcher's fan-out (spec C10). Every mutation and every list/send
// snapshot is safe against concurrent reap/accept/send.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Connection
	byUser map[string]map[string]struct{} // userID -> set of connection IDs
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Connection),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds a newly-accepted connection, idempotent by id: a second
// Register under the same ID overwrites the prior bookkeeping entry.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[conn.ID] = conn
	if conn.UserID != "" {
		set, ok := r.byUser[conn.UserID]
		if !ok {
			set = make(map[string]struct{})
			r.byUser[conn.UserID] = set
		}
		set[conn.ID] = struct{}{}
	}
}

// Remove drops a connection from the registry; idempotent on an unknown id.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byID[connectionID]
	if !ok {
		return
	}
	delete(r.byID, connectionID)
	if conn.UserID != "" {
		if set, ok := r.byUser[conn.UserID]; ok {
			delete(set, connectionID)
			if len(set) == 0 {
				delete(r.byUser, conn.UserID)
			}
		}
	}
}

// Touch advances lastSeenAt; no-op if the connection is absent.
func (r *Registry) Touch(connectionID string, tsMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.byID[connectionID]; ok {
		conn.LastSeenMs = tsMs
	}
}

// UpdateMetadata shallow-merges the optional fields present in patch;
// zero-value fields in patch are left untouched on the connection.
func (r *Registry) UpdateMetadata(connectionID string, patch MetadataPatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byID[connectionID]
	if !ok {
		return
	}
	if patch.ClientID != "" {
		conn.ClientID = patch.ClientID
	}
	if patch.InstanceID != "" {
		conn.InstanceID = patch.InstanceID
	}
	if patch.Platform != "" {
		conn.Platform = patch.Platform
	}
	if patch.IPAddress != "" {
		conn.IPAddress = patch.IPAddress
	}
	if patch.UserAgent != "" {
		conn.UserAgent = patch.UserAgent
	}
	if patch.DaemonGptID != "" {
		conn.DaemonGptID = patch.DaemonGptID
	}
}

// Get returns a snapshot copy of one connection, or false if unknown.
func (r *Registry) Get(connectionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byID[connectionID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// List returns a snapshot of every tracked connection, optionally filtered
// to a single user ID. Passing "" returns all connections.
func (r *Registry) List(userID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if userID == "" {
		out := make([]Connection, 0, len(r.byID))
		for _, c := range r.byID {
			out = append(out, *c)
		}
		return out
	}

	ids := r.byUser[userID]
	out := make([]Connection, 0, len(ids))
	for id := range ids {
		if c, ok := r.byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Count returns the number of tracked connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// SendMessageToConnection fails silently (returns false) on a missing
// connection or a send error, never panicking or propagating the error.
func (r *Registry) SendMessageToConnection(connectionID string, msg *Message) bool {
	r.mu.RLock()
	conn, ok := r.byID[connectionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Sender.Send(msg) == nil
}

// SendCommandToUser snapshot-iterates every connection for userID, skips
// ones whose send fails, and reports which succeeded. Serialization of the
// message happens once by the caller's Sender implementation per
// connection — the message itself is shared, immutable data.
func (r *Registry) SendCommandToUser(userID string, msg *Message) DispatchResult {
	conns := r.List(userID)
	sent := make([]string, 0, len(conns))
	for _, c := range conns {
		if c.Sender.Send(msg) == nil {
			sent = append(sent, c.ID)
		}
	}
	result := DispatchResult{OK: len(sent) > 0, SentCount: len(sent), ConnectionIDs: sent}
	if !result.OK {
		result.Error = "no connection accepted delivery for user " + userID
	}
	return result
}

// Reap force-closes and removes every connection whose lastSeenAt predates
// nowMs by more than clientTimeoutMs. It returns the IDs it reaped.
func (r *Registry) Reap(nowMs int64, clientTimeoutMs int64) []string {
	r.mu.Lock()
	var stale []*Connection
	for _, c := range r.byID {
		if nowMs-c.LastSeenMs > clientTimeoutMs {
			stale = append(stale, c)
		}
	}
	r.mu.Unlock()

	reaped := make([]string, 0, len(stale))
	for _, c := range stale {
		_ = c.Sender.Close(1001, "stale connection")
		r.Remove(c.ID)
		reaped = append(reaped, c.ID)
	}
	return reaped
}

// CloseAll force-closes and removes every tracked connection with the given
// close code/reason, used during server shutdown (spec §4.9).
func (r *Registry) CloseAll(code int, reason string) {
	conns := r.List("")
	for _, c := range conns {
		_ = c.Sender.Close(code, reason)
		r.Remove(c.ID)
	}
}
