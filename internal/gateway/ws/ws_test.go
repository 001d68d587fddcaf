package ws

import (
	"encoding/json"
	"testing"

	"github.com/rakunlabs/pcgate/internal/eventbus"
)

func TestClientFrameToIncomingMessageValidates(t *testing.T) {
	f := ClientFrame{Type: ClientSendMessage, ChannelID: "cli", SenderID: "u1", Content: "hi"}
	msg, err := f.ToIncomingMessage()
	if err != nil {
		t.Fatalf("ToIncomingMessage: %v", err)
	}
	if msg.ChannelID != "cli" || msg.SenderID != "u1" || msg.Content != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, err := (ClientFrame{Type: ClientSendMessage}).ToIncomingMessage(); err == nil {
		t.Fatalf("expected an error for a frame missing channel_id/sender_id")
	}

	if _, err := (ClientFrame{Type: ClientPing}).ToIncomingMessage(); err == nil {
		t.Fatalf("expected an error converting a non-send_message frame")
	}
}

func TestClientFrameFilterDefaultsToAllEvents(t *testing.T) {
	f := ClientFrame{Type: ClientSubscribe}
	filter := f.Filter()
	if !filter.Matches(eventbus.Event{Kind: eventbus.KindMessageReceived}) {
		t.Fatalf("expected an empty event_kinds list to match every kind")
	}
}

func TestClientFrameFilterNarrowsToGivenKinds(t *testing.T) {
	f := ClientFrame{Type: ClientSubscribe, EventKinds: []eventbus.Kind{eventbus.KindError}}
	filter := f.Filter()
	if !filter.Matches(eventbus.Event{Kind: eventbus.KindError}) {
		t.Fatalf("expected the filter to match the included kind")
	}
	if filter.Matches(eventbus.Event{Kind: eventbus.KindMessageReceived}) {
		t.Fatalf("expected the filter to reject a kind not in the allow-list")
	}
}

func TestUnmarshalClientFrameRejectsMissingType(t *testing.T) {
	if _, err := UnmarshalClientFrame([]byte(`{"channel_id":"cli"}`)); err == nil {
		t.Fatalf("expected an error for a frame missing type")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	frame := NewPongFrame("req-1")
	data, err := MarshalFrame(frame)
	if err != nil {
		t.Fatalf("MarshalFrame: %v", err)
	}

	var decoded ServerFrame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != ServerPong || decoded.RequestID != "req-1" {
		t.Fatalf("unexpected frame: %+v", decoded)
	}
}
