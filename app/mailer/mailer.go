package mailer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-linkhub/config"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Sender delivers a message on a best-effort basis. A false return has already been
// logged.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) bool
}

// New returns an SMTP sender when a host is configured and a log-only sender otherwise.
func New(cfg config.EmailConfig) Sender {
	if cfg.SMTPHost == "" {
		logrus.Warn("SMTP_HOST not set, emails will only be logged")
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}

type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil || port <= 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  timeout,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) bool {
	if err := s.send(ctx, to, subject, htmlBody, textBody); err != nil {
		logrus.WithError(err).WithField("to", to).Warn("Failed to send email")
		return false
	}
	logrus.WithField("to", to).Debug("Email sent")
	return true
}

func (s *SMTPSender) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err = client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTimeout(s.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}
	return opts
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

// Send logs the recipient and subject. Bodies carry live reset links and are only
// written at debug level.
func (LogSender) Send(_ context.Context, to, subject, _, textBody string) bool {
	log := logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	})
	log.Info("Email not delivered, SMTP is not configured")
	log.Debug(textBody)
	return true
}
