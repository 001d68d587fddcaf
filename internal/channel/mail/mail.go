// Package mail adapts an SMTP mailbox to channel.Adapter, built on the same
// wneessen/go-mail usage as the codebase's email workflow node
// (internal/service/workflow/nodes/email.go): outgoing messages are sent
// the same way, with the same TLS policy selection. This is a supplemental
// connector exercising a dependency already carried for a different feature.
package mail

import (
	"context"
	"crypto/tls"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

var _ channel.Adapter = (*Adapter)(nil)

// Config configures an Adapter instance, mirroring the SMTP NodeConfig
// fields the email workflow node reads.
type Config struct {
	Host               string
	Port               int
	Username, Password string
	From               string
	TLS                bool // implicit TLS, usually port 465
	NoTLS              bool // plain SMTP, no TLS at all
	InsecureSkipVerify bool
	Allowlist          []string
}

// Adapter is a channel.Adapter that only sends: SMTP is a push-only
// transport, so Receive always fails closed.
type Adapter struct {
	config Config
}

// New builds a mail Adapter. No connection is opened until Send is called;
// go-mail dials per message the same way the email workflow node does.
func New(config Config) *Adapter {
	return &Adapter{config: config}
}

func (a *Adapter) Name() string { return "mail" }

// Receive always fails: SMTP has no inbound channel here.
func (a *Adapter) Receive(ctx context.Context) (message.IncomingMessage, error) {
	return message.IncomingMessage{}, gerr.ErrChannelClosed
}

// Send delivers msg over SMTP, dialing fresh for each send the same way
// the email workflow node does (no persistent connection pool).
func (a *Adapter) Send(ctx context.Context, msg message.OutgoingMessage) (proof.PCA, error) {
	m := gomail.NewMsg()
	if err := m.From(a.config.From); err != nil {
		return proof.PCA{}, gerr.ErrInvalidMessage
	}
	if err := m.To(msg.RecipientID); err != nil {
		return proof.PCA{}, gerr.ErrInvalidMessage
	}
	m.Subject("message")
	m.SetBodyString(gomail.ContentType("text/plain"), msg.Content)

	opts := []gomail.Option{
		gomail.WithPort(a.config.Port),
		gomail.WithTimeout(30 * time.Second),
	}
	if a.config.Username != "" || a.config.Password != "" {
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthPlain), gomail.WithUsername(a.config.Username), gomail.WithPassword(a.config.Password))
	}

	if a.config.NoTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	} else {
		tlsConfig := &tls.Config{
			ServerName:         a.config.Host,
			InsecureSkipVerify: a.config.InsecureSkipVerify,
		}
		opts = append(opts, gomail.WithTLSConfig(tlsConfig))
		if a.config.TLS {
			opts = append(opts, gomail.WithSSL(), gomail.WithTLSPolicy(gomail.TLSMandatory))
		} else {
			opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
		}
	}

	c, err := gomail.NewClient(a.config.Host, opts...)
	if err != nil {
		return proof.PCA{}, gerr.ErrConnectionFailed
	}
	if err := c.DialAndSend(m); err != nil {
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

// Supports reports that this adapter is send-only plain text: no
// commands, groups, reactions, threads, files, or voice.
func (a *Adapter) Supports(feature channel.Feature) bool { return false }
