// Package channel defines the contract a chat platform connector must
// satisfy to plug into the gateway, plus a test double and the shared
// retry/rate-limit helpers every real connector uses.
package channel

import (
	"context"

	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

// Feature is a capability a channel adapter may or may not support.
type Feature int

const (
	FeatureCommands Feature = iota
	FeatureGroups
	FeatureReactions
	FeatureThreads
	FeatureFiles
	FeatureVoice
)

func (f Feature) String() string {
	switch f {
	case FeatureCommands:
		return "commands"
	case FeatureGroups:
		return "groups"
	case FeatureReactions:
		return "reactions"
	case FeatureThreads:
		return "threads"
	case FeatureFiles:
		return "files"
	case FeatureVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// Adapter is implemented by every chat platform connector the gateway
// talks to. Receive blocks until the next message arrives or ctx is
// cancelled. Send delivers a message and returns a pending proof the
// gateway orchestrator signs once the rest of the pipeline completes;
// adapters never hold a signing key themselves.
type Adapter interface {
	Name() string
	Receive(ctx context.Context) (message.IncomingMessage, error)
	Send(ctx context.Context, msg message.OutgoingMessage) (proof.PCA, error)
	EvaluatePermission(action message.Action, sender string) lang.Confidence
	Allowlist() []string
	Supports(feature Feature) bool
}

// TestAdapter is a placeholder Adapter used in tests and local bootstrap,
// equivalent to the original's TestChannel: Receive always fails closed,
// Send always returns a pending (unsigned) proof.
type TestAdapter struct {
	ChannelName string
	List        []string
}

// NewTestAdapter builds a TestAdapter with the given name and an empty
// allowlist.
func NewTestAdapter(name string) *TestAdapter {
	return &TestAdapter{ChannelName: name}
}

func (a *TestAdapter) Name() string { return a.ChannelName }

func (a *TestAdapter) Receive(ctx context.Context) (message.IncomingMessage, error) {
	return message.IncomingMessage{}, gerr.ErrChannelClosed
}

func (a *TestAdapter) Send(ctx context.Context, msg message.OutgoingMessage) (proof.PCA, error) {
	return proof.Pending(), nil
}

func (a *TestAdapter) EvaluatePermission(action message.Action, sender string) lang.Confidence {
	return lang.NewConfidence(0.5)
}

func (a *TestAdapter) Allowlist() []string { return a.List }

func (a *TestAdapter) Supports(feature Feature) bool { return false }
