// Package telegram adapts a Telegram bot connection to channel.Adapter,
// grounded on the original gateway's Telegram connector stub (never
// implemented there beyond its trait signature) and built against the
// teacher's real go-telegram-bot-api/v5 dependency.
package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

var _ channel.Adapter = (*Adapter)(nil)

// Config configures an Adapter instance.
type Config struct {
	// BotToken authenticates the underlying tgbotapi.BotAPI client.
	BotToken string
	// Allowlist restricts who evaluate_permission treats as trusted; an
	// empty list means no restriction.
	Allowlist []string
	// PollTimeoutSeconds is the long-poll timeout passed to GetUpdatesChan.
	PollTimeoutSeconds int
}

// Adapter is a channel.Adapter backed by a live Telegram bot polling loop.
type Adapter struct {
	config  Config
	bot     *tgbotapi.BotAPI
	updates tgbotapi.UpdatesChannel
}

// New builds an Adapter and its underlying bot client.
func New(config Config) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, &gerr.KeyGenerationFailed{Reason: "telegram bot: " + err.Error()}
	}
	return &Adapter{config: config, bot: bot}, nil
}

// Open starts the long-polling update loop. Call once before the gateway
// starts pulling messages.
func (a *Adapter) Open() error {
	timeout := a.config.PollTimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	update := tgbotapi.NewUpdate(0)
	update.Timeout = timeout
	a.updates = a.bot.GetUpdatesChan(update)
	return nil
}

// Close stops the update loop.
func (a *Adapter) Close() error {
	a.bot.StopReceivingUpdates()
	return nil
}

func (a *Adapter) Name() string { return "telegram" }

// Receive blocks on the update channel until a text message arrives or
// ctx is cancelled.
func (a *Adapter) Receive(ctx context.Context) (message.IncomingMessage, error) {
	for {
		select {
		case update, ok := <-a.updates:
			if !ok {
				return message.IncomingMessage{}, gerr.ErrChannelClosed
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			sender := strconv.FormatInt(update.Message.From.ID, 10)
			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			return message.NewIncomingMessage(a.Name()+":"+chatID, sender, update.Message.Text), nil
		case <-ctx.Done():
			return message.IncomingMessage{}, ctx.Err()
		}
	}
}

// Send posts msg to its chat. RecipientID is the chat id as a decimal
// string. The returned PCA is unsigned; the gateway orchestrator signs
// the final proof once the full pipeline has run.
func (a *Adapter) Send(ctx context.Context, msg message.OutgoingMessage) (proof.PCA, error) {
	chatID, err := strconv.ParseInt(msg.RecipientID, 10, 64)
	if err != nil {
		return proof.PCA{}, gerr.ErrInvalidMessage
	}
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, msg.Content)); err != nil {
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

// Supports reports Telegram's feature set: commands, groups, reactions
// and files are supported; threads and voice are not handled here.
func (a *Adapter) Supports(feature channel.Feature) bool {
	switch feature {
	case channel.FeatureCommands, channel.FeatureGroups, channel.FeatureReactions, channel.FeatureFiles:
		return true
	default:
		return false
	}
}
