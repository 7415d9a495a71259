package history

import (
	"strings"
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultWindow caps the rolling turn window per session.
	DefaultWindow = 20
	// DefaultTTL drops sessions idle longer than this.
	DefaultTTL = 30 * time.Minute

	maxRecentTasks = 5
)

// Turn is one conversation message as kept in context.
type Turn struct {
	Role      string
	Message   string
	Intent    string
	Entities  map[string]string
	Timestamp time.Time
}

// TaskRef remembers a task the conversation recently touched, so later
// pronouns ("it", "that") can resolve to it.
type TaskRef struct {
	ID    string
	Title string
}

// Context is a read-only snapshot for one (user, session) pair. Turns are
// most-recent-last; RecentTasks are most-recent-first.
type Context struct {
	Turns       []Turn
	RecentTasks []TaskRef
	EntityRefs  map[string]string
}

// LastAssistantMessage returns the most recent assistant turn, if any.
func (c Context) LastAssistantMessage() (string, bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role == RoleAssistant {
			return c.Turns[i].Message, true
		}
	}
	return "", false
}

type sessionKey struct {
	userID    string
	sessionID string
}

type session struct {
	turns    []Turn
	recent   []TaskRef
	lastSeen time.Time
}

// Manager holds per-(user,session) rolling conversation state. All access
// is mutex-serialized; returned snapshots are copies.
type Manager struct {
	mu       sync.RWMutex
	window   int
	ttl      time.Duration
	sessions map[sessionKey]*session
}

func NewManager(window int, ttl time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		window:   window,
		ttl:      ttl,
		sessions: make(map[sessionKey]*session),
	}
}

func (m *Manager) Context(userID, sessionID string) Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionKey{userID, sessionID}]
	if !ok {
		return Context{EntityRefs: map[string]string{}}
	}
	out := Context{
		Turns:       make([]Turn, len(s.turns)),
		RecentTasks: make([]TaskRef, len(s.recent)),
		EntityRefs:  make(map[string]string, len(s.recent)),
	}
	copy(out.Turns, s.turns)
	copy(out.RecentTasks, s.recent)
	for _, ref := range s.recent {
		out.EntityRefs[strings.ToLower(ref.Title)] = ref.ID
	}
	return out
}

func (m *Manager) Append(userID, sessionID string, turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID, sessionID)
	s.turns = append(s.turns, turn)
	if len(s.turns) > m.window {
		s.turns = s.turns[len(s.turns)-m.window:]
	}
	s.lastSeen = time.Now()
}

// NoteTask records a task as recently referenced. Re-noting an id moves
// it to the front.
func (m *Manager) NoteTask(userID, sessionID, taskID, title string) {
	if taskID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID, sessionID)
	refs := make([]TaskRef, 0, len(s.recent)+1)
	refs = append(refs, TaskRef{ID: taskID, Title: title})
	for _, ref := range s.recent {
		if ref.ID != taskID {
			refs = append(refs, ref)
		}
	}
	if len(refs) > maxRecentTasks {
		refs = refs[:maxRecentTasks]
	}
	s.recent = refs
	s.lastSeen = time.Now()
}

// ForgetTask drops a task from the reference list, e.g. after deletion.
func (m *Manager) ForgetTask(userID, sessionID, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{userID, sessionID}]
	if !ok {
		return
	}
	refs := s.recent[:0]
	for _, ref := range s.recent {
		if ref.ID != taskID {
			refs = append(refs, ref)
		}
	}
	s.recent = refs
}

func (m *Manager) Reset(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey{userID, sessionID})
}

// Sweep evicts sessions idle past the TTL and reports how many were
// dropped.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for k, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.ttl {
			delete(m.sessions, k)
			dropped++
		}
	}
	return dropped
}

func (m *Manager) session(userID, sessionID string) *session {
	k := sessionKey{userID, sessionID}
	s, ok := m.sessions[k]
	if !ok {
		s = &session{lastSeen: time.Now()}
		m.sessions[k] = s
	}
	return s
}
