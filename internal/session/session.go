// Package session tracks per-(channel, user) conversation state: a trust
// score that evolves with every action taken on the user's behalf, a
// history of signed action hashes, and a small context map for skills to
// read and write.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// State is a session's mutable context payload.
type State struct {
	Version uint64         `json:"version"`
	Hash    lang.Hash      `json:"hash"`
	Context map[string]any `json:"context,omitempty"`
}

// Session is one user's ongoing interaction within a channel.
type Session struct {
	ID           lang.Hash      `json:"id"`
	ChannelID    string         `json:"channel_id"`
	UserID       string         `json:"user_id"`
	State        State          `json:"state"`
	History      []lang.Hash    `json:"history,omitempty"`
	TrustScore   lang.Confidence `json:"trust_score"`
	CreatedAt    int64          `json:"created_at"`    // unix milliseconds
	LastActivity int64          `json:"last_activity"` // unix milliseconds
}

func newSession(channelID, userID string, initialTrust float64, now int64) Session {
	id := lang.HashString(fmt.Sprintf("session:%s:%s:%d", channelID, userID, now))
	return Session{
		ID:           id,
		ChannelID:    channelID,
		UserID:       userID,
		TrustScore:   lang.NewConfidence(initialTrust),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// IsExpired reports whether more than timeoutSeconds have elapsed since the
// session's last activity, as of now (unix milliseconds).
func (s Session) IsExpired(timeoutSeconds int64, now int64) bool {
	elapsedSeconds := (now - s.LastActivity) / 1000
	return elapsedSeconds > timeoutSeconds
}

// HistoryLength returns the number of actions recorded against the session.
func (s Session) HistoryLength() int { return len(s.History) }

// Config configures a Manager.
type Config struct {
	TimeoutSeconds int64
	MaxPerUser     int
	InitialTrust   float64
	// OnExpire, if set, is invoked once per session removed by an expiry
	// sweep (get_or_create's lazy check or Cleanup), with the lock released
	// so it can safely publish to an event bus.
	OnExpire func(Session)
}

// DefaultConfig matches the original session manager's defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutSeconds: 3600,
		MaxPerUser:     10,
		InitialTrust:   0.5,
	}
}

type userKey struct {
	channelID string
	userID    string
}

// Manager creates, looks up, and expires sessions, and updates trust scores
// after every action. Trust is recalculated by executing the builtin trust
// graph (see buildTrustGraph) through interp, rather than a bare closed-form
// computation in Go, so the calculation is auditable by the same machinery
// as routing and skill execution. The calculation is synchronous: the EMA
// closed form is cheap enough that spinning up a dedicated goroutine and
// channel round-trip for it only adds overhead and a deadlock hazard.
type Manager struct {
	interp     *lang.Interpreter
	trustGraph *lang.Graph
	config     Config

	mu           sync.Mutex
	sessions     map[lang.Hash]Session
	userSessions map[userKey]lang.Hash
	now          func() int64
}

// New builds a Manager backed by interp's op vocabulary.
func New(interp *lang.Interpreter, config Config) *Manager {
	return &Manager{
		interp:       interp,
		trustGraph:   buildTrustGraph(),
		config:       config,
		sessions:     make(map[lang.Hash]Session),
		userSessions: make(map[userKey]lang.Hash),
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// buildTrustGraph is the graph-based equivalent of the original's
// graphs/core/session.0: new_trust = current_trust*0.9 + action_confidence*0.1.
func buildTrustGraph() *lang.Graph {
	return &lang.Graph{
		Name:    "session_trust",
		Version: 1,
		Nodes: []lang.Node{
			{ID: "current_trust", Type: lang.NodeExternal, URI: "input://current_trust"},
			{ID: "action_confidence", Type: lang.NodeExternal, URI: "input://action_confidence"},
			{ID: "alpha", Type: lang.NodeConstant, Value: lang.Float(0.1)},
			{ID: "one_minus_alpha", Type: lang.NodeConstant, Value: lang.Float(0.9)},
			{ID: "weighted_current", Type: lang.NodeOperation, Op: "Multiply",
				Inputs: []string{"current_trust", "one_minus_alpha"}},
			{ID: "weighted_action", Type: lang.NodeOperation, Op: "Multiply",
				Inputs: []string{"action_confidence", "alpha"}},
			{ID: "new_trust", Type: lang.NodeOperation, Op: "Add",
				Inputs: []string{"weighted_current", "weighted_action"}},
		},
		Outputs:    []string{"new_trust"},
		EntryPoint: "current_trust",
	}
}

// ErrNotFound is returned when a session id has no matching session.
type ErrNotFound struct{ SessionID lang.Hash }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("session: not found: %s", e.SessionID.Hex()) }

// GetOrCreate returns the active session for (channelID, userID), creating
// one if none exists or the existing one has expired. The whole check is
// performed under a single lock so the uniqueness invariant (at most one
// non-expired session per user per channel) never races.
func (m *Manager) GetOrCreate(channelID, userID string) Session {
	key := userKey{channelID, userID}
	now := m.now()

	m.mu.Lock()
	var expired *Session
	if id, ok := m.userSessions[key]; ok {
		if s, ok := m.sessions[id]; ok {
			if !s.IsExpired(m.config.TimeoutSeconds, now) {
				m.mu.Unlock()
				return s
			}
			delete(m.sessions, id)
			expired = &s
		}
		delete(m.userSessions, key)
	}

	s := newSession(channelID, userID, m.config.InitialTrust, now)
	m.sessions[s.ID] = s
	m.userSessions[key] = s.ID
	m.mu.Unlock()

	if expired != nil && m.config.OnExpire != nil {
		m.config.OnExpire(*expired)
	}
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id lang.Hash) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Update records actionHash against the session's history, recalculates its
// trust score from actionConfidence, and bumps its state version — all
// under one lock, per the concurrency model's requirement that trust
// updates never interleave for the same session.
func (m *Manager) Update(ctx context.Context, id lang.Hash, actionHash lang.Hash, actionConfidence lang.Confidence) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{SessionID: id}
	}
	m.mu.Unlock()

	newTrust, err := m.calculateTrust(ctx, s.TrustScore, actionConfidence)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[id]
	if !ok {
		return &ErrNotFound{SessionID: id}
	}
	s.History = append(s.History, actionHash)
	s.TrustScore = newTrust
	s.State.Version++
	s.State.Hash = lang.HashString(fmt.Sprintf("%s:%d", id.Hex(), s.State.Version))
	s.LastActivity = m.now()
	m.sessions[id] = s
	return nil
}

func (m *Manager) calculateTrust(ctx context.Context, current, action lang.Confidence) (lang.Confidence, error) {
	inputs := map[string]lang.Value{
		"current_trust":     lang.Float(current.Value()),
		"action_confidence": lang.Float(action.Value()),
	}
	result, err := m.interp.Execute(ctx, m.trustGraph, inputs)
	if err != nil {
		return lang.Confidence{}, fmt.Errorf("session: trust calculation: %w", err)
	}
	v, ok := result.Outputs["new_trust"]
	if !ok {
		return lang.Confidence{}, fmt.Errorf("session: trust graph produced no new_trust output")
	}
	f, ok := v.AsFloat()
	if !ok {
		return lang.Confidence{}, fmt.Errorf("session: new_trust is not numeric")
	}
	return lang.NewConfidence(f), nil
}

// SetContext sets a context variable on the session, bumping its state
// version.
func (m *Manager) SetContext(id lang.Hash, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return &ErrNotFound{SessionID: id}
	}
	if s.State.Context == nil {
		s.State.Context = make(map[string]any)
	}
	s.State.Context[key] = value
	s.State.Version++
	m.sessions[id] = s
	return nil
}

// Remove deletes a session unconditionally, returning it if it existed.
func (m *Manager) Remove(id lang.Hash) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(m.sessions, id)
	delete(m.userSessions, userKey{s.ChannelID, s.UserID})
	return s, true
}

// CleanupExpired removes every session past its timeout, invoking
// config.OnExpire once per removed session outside the lock, and returns
// the count removed.
func (m *Manager) CleanupExpired() int {
	now := m.now()

	m.mu.Lock()
	var expired []Session
	for id, s := range m.sessions {
		if s.IsExpired(m.config.TimeoutSeconds, now) {
			expired = append(expired, s)
			delete(m.sessions, id)
			delete(m.userSessions, userKey{s.ChannelID, s.UserID})
		}
	}
	m.mu.Unlock()

	if m.config.OnExpire != nil {
		for _, s := range expired {
			m.config.OnExpire(s)
		}
	}
	return len(expired)
}

// Count returns the number of active (not necessarily unexpired) sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// List returns a snapshot of all active sessions.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// ForChannel returns a snapshot of sessions belonging to channelID.
func (m *Manager) ForChannel(channelID string) []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// ForUser returns a snapshot of sessions belonging to userID across channels.
func (m *Manager) ForUser(userID string) []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Info is the API-facing projection of a Session (hex id, float trust).
type Info struct {
	ID             string  `json:"id"`
	ChannelID      string  `json:"channel_id"`
	UserID         string  `json:"user_id"`
	TrustScore     float64 `json:"trust_score"`
	HistoryLength  int     `json:"history_length"`
	CreatedAt      int64   `json:"created_at"`
	LastActivity   int64   `json:"last_activity"`
}

// NewInfo projects s into its API representation.
func NewInfo(s Session) Info {
	return Info{
		ID:            s.ID.Hex(),
		ChannelID:     s.ChannelID,
		UserID:        s.UserID,
		TrustScore:    s.TrustScore.Value(),
		HistoryLength: s.HistoryLength(),
		CreatedAt:     s.CreatedAt,
		LastActivity:  s.LastActivity,
	}
}
