// Package eventbus provides publish-subscribe fan-out for gateway-wide
// notifications: a message arrived, a session expired, a skill ran.
// Subscribers that fall behind are dropped rather than allowed to block a
// publish, the same non-blocking-send-or-drop policy the codebase's own
// client broadcaster uses for its SSE channels.
package eventbus

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// Kind discriminates the event types a Bus can carry.
type Kind string

const (
	KindMessageReceived      Kind = "message_received"
	KindMessageProcessed     Kind = "message_processed"
	KindActionExecuted       Kind = "action_executed"
	KindSessionCreated       Kind = "session_created"
	KindSessionUpdated       Kind = "session_updated"
	KindSessionExpired       Kind = "session_expired"
	KindSkillInvoked         Kind = "skill_invoked"
	KindError                Kind = "error"
	KindGatewayStarted       Kind = "gateway_started"
	KindGatewayStopped       Kind = "gateway_stopped"
	KindChannelConnected     Kind = "channel_connected"
	KindChannelDisconnected  Kind = "channel_disconnected"
	KindCustom               Kind = "custom"
)

// Event is one notification published on the bus. Exactly the fields
// relevant to Kind are populated, the same convention lang.Node and
// message.Action use for their own variant types.
type Event struct {
	Kind Kind `json:"kind"`

	// MessageReceived
	ChannelID   string    `json:"channel_id,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	MessageHash lang.Hash `json:"message_hash,omitempty"`

	// MessageProcessed
	SkillHash  lang.Hash       `json:"skill_hash,omitempty"`
	Confidence lang.Confidence `json:"confidence,omitempty"`

	// ActionExecuted
	ActionType string `json:"action_type,omitempty"`
	Success    bool   `json:"success,omitempty"`

	// SessionCreated / SessionUpdated / SessionExpired
	SessionID  lang.Hash `json:"session_id,omitempty"`
	TrustScore float64   `json:"trust_score,omitempty"`

	// SkillInvoked
	SkillName string `json:"skill_name,omitempty"`

	// Error
	Source  string `json:"source,omitempty"`
	Message string `json:"message,omitempty"`

	// GatewayStarted / GatewayStopped
	Timestamp int64  `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// ChannelConnected / ChannelDisconnected reuse ChannelID/Reason above.

	// Custom
	Name string `json:"name,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Type returns the event's kind as a plain string, for logging.
func (e Event) Type() string { return string(e.Kind) }

// Stats reports aggregate usage of a Bus.
type Stats struct {
	EventsPublished uint64
	EventsByType    map[Kind]uint64
	SubscriberCount int
}

// DefaultCapacity is the per-subscriber channel buffer size. A subscriber
// that can't keep up with this much backlog is dropped rather than allowed
// to stall publishers.
const DefaultCapacity = 100

// Bus is a gateway-wide publish-subscribe broadcaster.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	capacity    int

	statsMu sync.Mutex
	stats   Stats
}

// New builds a Bus with the default per-subscriber buffer capacity.
func New() *Bus {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity builds a Bus whose subscriber channels buffer up to
// capacity events before being dropped.
func NewWithCapacity(capacity int) *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
		capacity:    capacity,
		stats:       Stats{EventsByType: make(map[Kind]uint64)},
	}
}

// Subscribe registers a new subscriber and returns its id and receive-only
// channel. Call Unsubscribe(id) when done to release it.
func (b *Bus) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := ulid.Make().String()
	ch := make(chan Event, b.capacity)
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes the subscriber channel for id, if present.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish broadcasts event to every subscriber, dropping (and removing) any
// subscriber whose buffer is already full instead of blocking.
func (b *Bus) Publish(event Event) {
	b.statsMu.Lock()
	b.stats.EventsPublished++
	b.stats.EventsByType[event.Kind]++
	b.statsMu.Unlock()

	var stale []string
	b.mu.RLock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			stale = append(stale, id)
		}
	}
	b.mu.RUnlock()

	if len(stale) > 0 {
		b.mu.Lock()
		for _, id := range stale {
			if ch, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(ch)
			}
		}
		b.mu.Unlock()
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns a snapshot of the bus's usage counters.
func (b *Bus) StatsSnapshot() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	byType := make(map[Kind]uint64, len(b.stats.EventsByType))
	for k, v := range b.stats.EventsByType {
		byType[k] = v
	}
	return Stats{
		EventsPublished: b.stats.EventsPublished,
		EventsByType:    byType,
		SubscriberCount: b.SubscriberCount(),
	}
}

// Error publishes an Error event with source and message.
func (b *Bus) Error(source, message string) {
	b.Publish(Event{Kind: KindError, Source: source, Message: message})
}

// Custom publishes a Custom event carrying an arbitrary name/data payload.
func (b *Bus) Custom(name string, data any) {
	b.Publish(Event{Kind: KindCustom, Name: name, Data: data})
}

// Filter selects a subset of event kinds for a subscriber to act on.
type Filter struct {
	include map[Kind]bool
	exclude map[Kind]bool
}

// AllEvents returns a Filter that accepts every kind.
func AllEvents() Filter {
	return Filter{}
}

// Include restricts the filter to the given kind (in addition to any
// previously included kinds).
func (f Filter) Include(kind Kind) Filter {
	if f.include == nil {
		f.include = make(map[Kind]bool)
	}
	f.include[kind] = true
	return f
}

// Exclude removes the given kind from the filter, overriding Include.
func (f Filter) Exclude(kind Kind) Filter {
	if f.exclude == nil {
		f.exclude = make(map[Kind]bool)
	}
	f.exclude[kind] = true
	return f
}

// Matches reports whether event passes the filter: excluded kinds are
// always rejected, otherwise an empty include set accepts everything and
// a non-empty one requires membership.
func (f Filter) Matches(event Event) bool {
	if f.exclude[event.Kind] {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	return f.include[event.Kind]
}
