// Package discord adapts a Discord bot connection to channel.Adapter,
// grounded on the original gateway's Discord connector stub (never
// implemented there beyond its trait signature) and built against the
// teacher's real bwmarrin/discordgo dependency.
package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

var _ channel.Adapter = (*Adapter)(nil)

// Config configures an Adapter instance.
type Config struct {
	// BotToken authenticates the underlying discordgo session.
	BotToken string
	// Allowlist restricts who evaluate_permission treats as trusted; an
	// empty list means no restriction.
	Allowlist []string
}

// Adapter is a channel.Adapter backed by a live Discord bot session.
// Incoming messages are buffered on a channel fed by the session's
// MessageCreate handler; Receive drains it.
type Adapter struct {
	config  Config
	session *discordgo.Session

	incoming chan message.IncomingMessage

	mu      sync.Mutex
	started bool
}

// New builds an Adapter and its underlying discordgo session. Open must
// be called before Receive will produce anything.
func New(config Config) (*Adapter, error) {
	session, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return nil, &gerr.KeyGenerationFailed{Reason: "discord session: " + err.Error()}
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	a := &Adapter{
		config:   config,
		session:  session,
		incoming: make(chan message.IncomingMessage, 256),
	}
	session.AddHandler(a.onMessageCreate)
	return a, nil
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	in := message.NewIncomingMessage(a.Name(), m.Author.ID, m.Content)
	select {
	case a.incoming <- in:
	default:
	}
}

// Open connects the underlying session to the Discord gateway. Call once
// before the gateway starts pulling messages.
func (a *Adapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.session.Open(); err != nil {
		return gerr.ErrConnectionFailed
	}
	a.started = true
	return nil
}

// Close disconnects the underlying session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false
	return a.session.Close()
}

func (a *Adapter) Name() string { return "discord" }

// Receive blocks until a message arrives on the buffered queue fed by the
// MessageCreate handler, or ctx is cancelled.
func (a *Adapter) Receive(ctx context.Context) (message.IncomingMessage, error) {
	select {
	case in := <-a.incoming:
		return in, nil
	case <-ctx.Done():
		return message.IncomingMessage{}, ctx.Err()
	}
}

// Send posts msg to its channel via the Discord REST API. The returned PCA
// is unsigned; the gateway orchestrator signs the final proof once the
// full pipeline has run.
func (a *Adapter) Send(ctx context.Context, msg message.OutgoingMessage) (proof.PCA, error) {
	if _, err := a.session.ChannelMessageSend(msg.RecipientID, msg.Content); err != nil {
		return proof.PCA{}, gerr.ErrSendFailed
	}
	return proof.Pending(), nil
}

// EvaluatePermission grants full confidence to allowlisted senders (or
// when the allowlist is empty) and a neutral score otherwise.
func (a *Adapter) EvaluatePermission(action message.Action, sender string) lang.Confidence {
	if len(a.config.Allowlist) == 0 {
		return lang.NewConfidence(1.0)
	}
	for _, id := range a.config.Allowlist {
		if id == sender {
			return lang.NewConfidence(1.0)
		}
	}
	return lang.NewConfidence(0.3)
}

func (a *Adapter) Allowlist() []string { return a.config.Allowlist }

// Supports reports Discord's feature set: commands, groups, reactions,
// threads and files are supported; voice is not handled by this adapter.
func (a *Adapter) Supports(feature channel.Feature) bool {
	switch feature {
	case channel.FeatureCommands, channel.FeatureGroups, channel.FeatureReactions,
		channel.FeatureThreads, channel.FeatureFiles:
		return true
	default:
		return false
	}
}
