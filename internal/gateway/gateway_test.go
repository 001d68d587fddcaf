package gateway

import (
	"context"
	"testing"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

func newTestGateway(t *testing.T) (*Gateway, *proof.Generator) {
	t.Helper()
	gen, err := proof.NewRandom()
	if err != nil {
		t.Fatalf("proof.NewRandom: %v", err)
	}
	g, err := New(DefaultConfig(), gen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, gen
}

func TestProcessMessageBeforeStartFailsClosed(t *testing.T) {
	g, _ := newTestGateway(t)
	msg := message.NewIncomingMessage("test", "u1", "hello")

	pca, err := g.ProcessMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessage returned an error instead of a signed failure proof: %v", err)
	}
	if !pca.IsSigned() {
		t.Fatalf("expected a signed NoOp PCA")
	}
	if !pca.Action.IsNoOp() {
		t.Fatalf("expected a NoOp action, got %s", pca.Action.Kind)
	}
}

func TestProcessMessageRoutesToEchoByDefault(t *testing.T) {
	g, _ := newTestGateway(t)
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	msg := message.NewIncomingMessage("test", "u1", "hello there")
	pca, err := g.ProcessMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !pca.IsSigned() {
		t.Fatalf("expected a signed PCA")
	}
	if pca.Action.Kind != message.ActionSendMessage {
		t.Fatalf("expected a send_message action, got %s (reason: %s)", pca.Action.Kind, pca.Action.Reason)
	}
	if pca.Action.Message == nil || pca.Action.Message.ChannelID != "test" {
		t.Fatalf("expected the reply addressed back to the source channel")
	}
}

func TestProcessMessageRoutesHelpCommandToEcho(t *testing.T) {
	g, _ := newTestGateway(t)
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	msg := message.NewIncomingMessage("test", "u1", "/help")
	pca, err := g.ProcessMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if pca.Action.Kind != message.ActionSendMessage {
		t.Fatalf("expected a send_message action, got %s", pca.Action.Kind)
	}
}

func TestStartTwiceIsAlreadyRunning(t *testing.T) {
	g, _ := newTestGateway(t)
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Start(); err != gerr.ErrAlreadyRunning {
		t.Fatalf("second Start() = %v, want ErrAlreadyRunning", err)
	}
}

func TestStopWithoutStartIsNotInitialized(t *testing.T) {
	g, _ := newTestGateway(t)
	if err := g.Stop(); err != gerr.ErrNotInitialized {
		t.Fatalf("Stop() = %v, want ErrNotInitialized", err)
	}
}

func TestExecuteActionDispatchesSendMessageToChannel(t *testing.T) {
	g, gen := newTestGateway(t)
	adapter := channel.NewTestAdapter("test")
	g.RegisterChannel(adapter)

	action := message.SendMessage(message.NewOutgoingMessage("test", "u1", "hi there"))
	pca, err := gen.Generate(action, lang.Hash{}, lang.Hash{}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := g.ExecuteAction(context.Background(), pca); err != nil {
		t.Fatalf("ExecuteAction: %v", err)
	}
}

func TestExecuteActionRejectsBadSignature(t *testing.T) {
	g, gen := newTestGateway(t)
	action := message.NoOp("test")
	pca, err := gen.Generate(action, lang.Hash{}, lang.Hash{}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	pca.Signature[0] ^= 0xFF

	if err := g.ExecuteAction(context.Background(), pca); err != gerr.ErrInvalidSignature {
		t.Fatalf("ExecuteAction() = %v, want ErrInvalidSignature", err)
	}
}

func TestAdapterNameSplitsOnColon(t *testing.T) {
	cases := map[string]string{
		"telegram:12345": "telegram",
		"discord":        "discord",
	}
	for in, want := range cases {
		if got := adapterName(in); got != want {
			t.Errorf("adapterName(%q) = %q, want %q", in, got, want)
		}
	}
}
