// Package message defines the wire-level chat message and action types
// shared by the router, session manager, proof generator, channel
// adapters, and gateway orchestrator. It depends only on lang, so every
// higher package in the gateway can import it without a cycle.
package message

import (
	"fmt"
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// IncomingMessage is a message received from any channel.
type IncomingMessage struct {
	ID        lang.Hash      `json:"id"`
	ChannelID string         `json:"channel_id"`
	SenderID  string         `json:"sender_id"`
	Content   string         `json:"content"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewIncomingMessage builds an IncomingMessage with a content-derived ID
// and the current time as its timestamp.
func NewIncomingMessage(channelID, senderID, content string) IncomingMessage {
	ts := time.Now().UnixMilli()
	id := lang.HashString(fmt.Sprintf("%s:%s:%s:%d", channelID, senderID, content, ts))
	return IncomingMessage{
		ID:        id,
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: ts,
	}
}

// WithMetadata returns a copy of m with Metadata set.
func (m IncomingMessage) WithMetadata(metadata map[string]any) IncomingMessage {
	m.Metadata = metadata
	return m
}

// OutgoingMessage is a message to be sent to a channel.
type OutgoingMessage struct {
	ChannelID   string     `json:"channel_id"`
	RecipientID string     `json:"recipient_id"`
	Content     string     `json:"content"`
	ReplyTo     *lang.Hash `json:"reply_to,omitempty"`
}

func NewOutgoingMessage(channelID, recipientID, content string) OutgoingMessage {
	return OutgoingMessage{ChannelID: channelID, RecipientID: recipientID, Content: content}
}

// WithReplyTo returns a copy of m with ReplyTo set to hash.
func (m OutgoingMessage) WithReplyTo(hash lang.Hash) OutgoingMessage {
	m.ReplyTo = &hash
	return m
}

// Action kinds, matching the original's Action enum discriminants.
const (
	ActionSendMessage   = "send_message"
	ActionExecuteSkill  = "execute_skill"
	ActionUpdateSession = "update_session"
	ActionNoOp          = "noop"
)

// Action is the sum type of everything the gateway can decide to do with a
// processed message. Exactly the fields relevant to Kind are populated,
// the same convention lang.Node uses for its own node variants.
type Action struct {
	Kind string `json:"kind"`

	// ActionSendMessage
	Message *OutgoingMessage `json:"message,omitempty"`

	// ActionExecuteSkill
	SkillHash lang.Hash             `json:"skill_hash,omitempty"`
	Inputs    map[string]lang.Value `json:"inputs,omitempty"`

	// ActionUpdateSession
	SessionHash lang.Hash      `json:"session_hash,omitempty"`
	Updates     map[string]any `json:"updates,omitempty"`

	// ActionNoOp
	Reason string `json:"reason,omitempty"`
}

// SendMessage builds a SendMessage action.
func SendMessage(m OutgoingMessage) Action {
	return Action{Kind: ActionSendMessage, Message: &m}
}

// ExecuteSkill builds an ExecuteSkill action.
func ExecuteSkill(skillHash lang.Hash, inputs map[string]lang.Value) Action {
	return Action{Kind: ActionExecuteSkill, SkillHash: skillHash, Inputs: inputs}
}

// UpdateSession builds an UpdateSession action.
func UpdateSession(sessionHash lang.Hash, updates map[string]any) Action {
	return Action{Kind: ActionUpdateSession, SessionHash: sessionHash, Updates: updates}
}

// NoOp builds a NoOp action carrying a diagnostic reason.
func NoOp(reason string) Action {
	return Action{Kind: ActionNoOp, Reason: reason}
}

// IsNoOp reports whether a is a no-op.
func (a Action) IsNoOp() bool { return a.Kind == ActionNoOp }

// Type returns the action's discriminant, for logging and the PCA wire format.
func (a Action) Type() string { return a.Kind }
