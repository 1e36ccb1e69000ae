package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"webmail/config"
	"webmail/utils"
)

// ErrNoRecipients is returned when a message has nobody to deliver to
var ErrNoRecipients = errors.New("message has no recipients")

// Credentials authenticate against the relay
type Credentials struct {
	Username string
	Password string
}

// Sender submits messages to the configured SMTP relay
type Sender struct {
	cfg  config.SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSender creates a sender for cfg
func NewSender(cfg config.SMTPConfig) *Sender {
	d := &net.Dialer{Timeout: cfg.TimeoutDuration()}
	return &Sender{cfg: cfg, dial: d.DialContext}
}

// RelayCredentials returns the configured relay login, if any
func (s *Sender) RelayCredentials() (Credentials, bool) {
	if s.cfg.Username == "" {
		return Credentials{}, false
	}
	return Credentials{Username: s.cfg.Username, Password: s.cfg.Password}, true
}

func (s *Sender) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         s.cfg.Server,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

// connect opens an authenticated session with the relay. Port 465 uses
// implicit TLS; otherwise STARTTLS is issued when enabled and offered.
func (s *Sender) connect(ctx context.Context, creds Credentials) (*smtp.Client, error) {
	addr := s.cfg.Address()
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %v", err)
	}

	deadline := time.Now().Add(s.cfg.TimeoutDuration())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	implicitTLS := s.cfg.GetPort() == 465 && !s.cfg.UseSTARTTLS
	if implicitTLS {
		conn = tls.Client(conn, s.tlsConfig())
	}

	client, err := smtp.NewClient(conn, s.cfg.Server)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("greeting failed: %v", err)
	}

	if err := client.Hello(helloName(creds.Username)); err != nil {
		client.Close()
		return nil, fmt.Errorf("hello failed: %v", err)
	}

	if !implicitTLS && s.cfg.UseSTARTTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig()); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls failed: %v", err)
			}
		}
	}

	if creds.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", creds.Username, creds.Password, s.cfg.Server)
			if err := client.Auth(auth); err != nil {
				client.Close()
				return nil, fmt.Errorf("auth failed: %v", err)
			}
		}
	}
	return client, nil
}

func helloName(username string) string {
	if at := strings.LastIndex(username, "@"); at >= 0 && at < len(username)-1 {
		return username[at+1:]
	}
	return "localhost"
}

// Send delivers msg and returns its Message-ID
func (s *Sender) Send(ctx context.Context, creds Credentials, msg *Message) (string, error) {
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}
	if msg.MessageID == "" {
		msg.MessageID = NewMessageID(helloName(msg.From.Address))
	}
	data, err := msg.Bytes()
	if err != nil {
		return "", fmt.Errorf("building message: %w", err)
	}

	client, err := s.connect(ctx, creds)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.Mail(msg.From.Address); err != nil {
		return "", fmt.Errorf("mail from failed: %v", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return "", fmt.Errorf("rcpt to %s failed: %v", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("data failed: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("data close failed: %v", err)
	}
	if err := client.Quit(); err != nil {
		utils.Log.Debug("SMTP quit: %v", err)
	}

	utils.Log.Info("Email submitted: from=%s recipients=%d id=%s", msg.From.Address, len(recipients), msg.MessageID)
	return msg.MessageID, nil
}

// Verify checks that the relay accepts a connection and the credentials
func (s *Sender) Verify(ctx context.Context, creds Credentials) error {
	client, err := s.connect(ctx, creds)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Noop(); err != nil {
		return fmt.Errorf("noop failed: %v", err)
	}
	return client.Quit()
}
