// Package ws defines the wire message types for the gateway's control
// WebSocket: the frames a connected admin UI or operator tool would
// exchange with the gateway over a persistent socket, complementing the
// request/response control-plane API in internal/gateway/server.go. The
// socket transport itself is out of scope here — only the message
// envelope and its variants are defined, the same interface-first split
// internal/eventbus uses between "what an event is" and "how it's
// delivered". A real transport would terminate at the same ada mux as
// server.go and upgrade with github.com/gorilla/websocket or
// nhooyr.io/websocket, both already present in the dependency graph.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/rakunlabs/pcgate/internal/eventbus"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

// ClientType discriminates frames a client sends to the gateway.
type ClientType string

const (
	// ClientSubscribe asks the socket to start forwarding bus events
	// matching Filter (an empty filter subscribes to everything).
	ClientSubscribe ClientType = "subscribe"
	// ClientUnsubscribe cancels a prior subscribe, identified by the same
	// connection (a control socket carries at most one subscription).
	ClientUnsubscribe ClientType = "unsubscribe"
	// ClientSendMessage submits an IncomingMessage to ProcessMessage, the
	// socket equivalent of POST /api/v1/messages.
	ClientSendMessage ClientType = "send_message"
	// ClientPing is answered with a ServerPong, for liveness checks that
	// don't want to wait on the transport's own ping/pong control frames.
	ClientPing ClientType = "ping"
)

// ClientFrame is one message a client sends over the control socket.
type ClientFrame struct {
	Type ClientType `json:"type"`

	// Subscribe / Unsubscribe
	EventKinds []eventbus.Kind `json:"event_kinds,omitempty"`

	// SendMessage
	ChannelID string `json:"channel_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// RequestID, if set, is echoed back on the matching ServerFrame so a
	// client can correlate a request with its response on a socket that
	// interleaves subscription events with command replies.
	RequestID string `json:"request_id,omitempty"`
}

// ServerType discriminates frames the gateway sends to a connected client.
type ServerType string

const (
	// ServerEvent forwards one eventbus.Event to a subscribed client.
	ServerEvent ServerType = "event"
	// ServerPCA carries the result of a ClientSendMessage command.
	ServerPCA ServerType = "pca"
	// ServerError reports a malformed frame or a failed command.
	ServerError ServerType = "error"
	// ServerPong answers a ClientPing.
	ServerPong ServerType = "pong"
)

// ServerFrame is one message the gateway sends over the control socket.
type ServerFrame struct {
	Type      ServerType `json:"type"`
	RequestID string     `json:"request_id,omitempty"`

	Event *eventbus.Event `json:"event,omitempty"`
	PCA   *proof.PCA      `json:"pca,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewEventFrame wraps a bus event for delivery to a subscribed client.
func NewEventFrame(event eventbus.Event) ServerFrame {
	return ServerFrame{Type: ServerEvent, Event: &event}
}

// NewPCAFrame wraps the signed result of a send_message command, tagged
// with the request id it answers.
func NewPCAFrame(requestID string, pca proof.PCA) ServerFrame {
	return ServerFrame{Type: ServerPCA, RequestID: requestID, PCA: &pca}
}

// NewErrorFrame reports a failure against the request id it answers, or
// unsolicited (empty requestID) for a connection-level problem.
func NewErrorFrame(requestID string, err error) ServerFrame {
	return ServerFrame{Type: ServerError, RequestID: requestID, Error: err.Error()}
}

// NewPongFrame answers a ClientPing, echoing its request id.
func NewPongFrame(requestID string) ServerFrame {
	return ServerFrame{Type: ServerPong, RequestID: requestID}
}

// ToIncomingMessage converts a ClientSendMessage frame into the message
// the gateway's ProcessMessage expects, validating the fields a socket
// transport can't enforce at the JSON-schema level.
func (f ClientFrame) ToIncomingMessage() (message.IncomingMessage, error) {
	if f.Type != ClientSendMessage {
		return message.IncomingMessage{}, fmt.Errorf("ws: frame is not a %s frame", ClientSendMessage)
	}
	if f.ChannelID == "" || f.SenderID == "" {
		return message.IncomingMessage{}, fmt.Errorf("ws: send_message requires channel_id and sender_id")
	}
	return message.NewIncomingMessage(f.ChannelID, f.SenderID, f.Content), nil
}

// Filter builds the eventbus.Filter a ClientSubscribe frame describes: an
// empty EventKinds list subscribes to everything, matching eventbus.AllEvents.
func (f ClientFrame) Filter() eventbus.Filter {
	filter := eventbus.AllEvents()
	if len(f.EventKinds) == 0 {
		return filter
	}
	// A non-empty kind list is an allow-list: start from an empty filter
	// that excludes by default isn't expressible, so Include each kind
	// in turn — the zero-value Filter already accepts everything until
	// the first Include call narrows it.
	narrowed := eventbus.Filter{}
	for _, k := range f.EventKinds {
		narrowed = narrowed.Include(k)
	}
	return narrowed
}

// MarshalFrame is a small convenience wrapper so callers don't need to
// import encoding/json just to serialize a ServerFrame onto a socket.
func MarshalFrame(frame ServerFrame) ([]byte, error) {
	return json.Marshal(frame)
}

// UnmarshalClientFrame parses one client frame off the wire.
func UnmarshalClientFrame(data []byte) (ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return ClientFrame{}, fmt.Errorf("ws: invalid client frame: %w", err)
	}
	if f.Type == "" {
		return ClientFrame{}, fmt.Errorf("ws: client frame missing type")
	}
	return f, nil
}
