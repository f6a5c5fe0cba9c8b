package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"helpdesk_backend/internal/channel"
	"helpdesk_backend/platform/sanitize"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds an organization's SMTP credentials.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// Configured reports whether enough is set to attempt a connection.
func (c SMTPConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && c.Port > 0 && strings.TrimSpace(c.FromEmail) != ""
}

// DialFunc opens the TCP connection to the SMTP server.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SMTPSender delivers through the organization's own SMTP server via go-mail.
type SMTPSender struct {
	cfg  SMTPConfig
	dial DialFunc
}

// NewSMTPSender creates a sender. A nil dial uses a plain tcp4 dialer.
func NewSMTPSender(cfg SMTPConfig, dial DialFunc) *SMTPSender {
	if dial == nil {
		dial = func(ctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
		}
	}
	return &SMTPSender{cfg: cfg, dial: dial}
}

func (s *SMTPSender) Kind() channel.ProviderKind { return channel.ProviderSMTP }

func (s *SMTPSender) buildMessage(msg channel.Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrInvalidRecipient, err)
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()

	htmlBody, err := Layout(msg.Subject, msg.Body)
	if err != nil {
		return nil, err
	}
	m.SetBodyString(gomail.TypeTextHTML, htmlBody)
	m.AddAlternativeString(gomail.TypeTextPlain, sanitize.StripHTML(msg.Body))
	return m, nil
}

// Send delivers msg and returns the generated Message-ID as the external id.
func (s *SMTPSender) Send(ctx context.Context, msg channel.Message) (channel.Receipt, error) {
	m, err := s.buildMessage(msg)
	if err != nil {
		return channel.Receipt{}, err
	}

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, network, addr string) (net.Conn, error) {
			return s.dial(dctx, network, addr)
		}),
	)
	if err != nil {
		return channel.Receipt{}, fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return channel.Receipt{}, fmt.Errorf("smtp send: %w", err)
	}

	return channel.Receipt{
		Provider:   channel.ProviderSMTP,
		ExternalID: strings.Trim(m.GetMessageID(), "<>"),
		SentAt:     time.Now().UTC(),
	}, nil
}
