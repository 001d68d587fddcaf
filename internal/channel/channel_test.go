package channel

import (
	"context"
	"testing"

	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/message"
)

func TestTestAdapterReceiveFailsClosed(t *testing.T) {
	a := NewTestAdapter("test")
	_, err := a.Receive(context.Background())
	if err != gerr.ErrChannelClosed {
		t.Errorf("Receive() error = %v, want ErrChannelClosed", err)
	}
}

func TestTestAdapterSendReturnsPending(t *testing.T) {
	a := NewTestAdapter("test")
	pca, err := a.Send(context.Background(), message.NewOutgoingMessage("test", "u1", "hi"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pca.IsSigned() {
		t.Errorf("expected an unsigned pending PCA")
	}
}

func TestTestAdapterPermissionAndFeatures(t *testing.T) {
	a := NewTestAdapter("test")
	if got := a.EvaluatePermission(message.NoOp("x"), "sender"); got.Value() != 0.5 {
		t.Errorf("EvaluatePermission() = %v, want 0.5", got.Value())
	}
	if a.Supports(FeatureCommands) {
		t.Errorf("expected TestAdapter to support no features")
	}
	if len(a.Allowlist()) != 0 {
		t.Errorf("expected an empty allowlist")
	}
}

func TestFeatureString(t *testing.T) {
	if FeatureVoice.String() != "voice" {
		t.Errorf("Feature.String() = %q, want voice", FeatureVoice.String())
	}
	if Feature(99).String() != "unknown" {
		t.Errorf("expected unknown feature to stringify as unknown")
	}
}
