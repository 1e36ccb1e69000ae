package mailer

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"webmail/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay is a minimal SMTP server that records one transaction
type fakeRelay struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt []string
	data string
}

func startFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &fakeRelay{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go r.serve()
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			tp.PrintfLine("250-fake")
			tp.PrintfLine("250 HELP")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.mu.Lock()
			r.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			r.mu.Unlock()
			tp.PrintfLine("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			r.mu.Lock()
			r.rcpt = append(r.rcpt, strings.Trim(line[len("RCPT TO:"):], "<> "))
			r.mu.Unlock()
			tp.PrintfLine("250 ok")
		case cmd == "DATA":
			tp.PrintfLine("354 go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = strings.Join(lines, "\n")
			r.mu.Unlock()
			tp.PrintfLine("250 queued")
		case cmd == "NOOP":
			tp.PrintfLine("250 ok")
		case cmd == "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 unknown")
		}
	}
}

func relayConfig(port int) config.SMTPConfig {
	return config.SMTPConfig{Server: "127.0.0.1", Port: port, UseSTARTTLS: true, Timeout: "5s"}
}

func TestSenderSend(t *testing.T) {
	relay := startFakeRelay(t)
	sender := NewSender(relayConfig(relay.port()))

	msg := testMessage()
	msg.MessageID = ""
	id, err := sender.Send(context.Background(), Credentials{}, msg)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@mail.test"))

	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Equal(t, "ana@mail.test", relay.from)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com", "secret@example.com"}, relay.rcpt)
	assert.Contains(t, relay.data, "Message-Id: <"+id+">")
	assert.NotContains(t, relay.data, "secret@example.com")
}

func TestSenderVerify(t *testing.T) {
	relay := startFakeRelay(t)
	sender := NewSender(relayConfig(relay.port()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, sender.Verify(ctx, Credentials{}))
}

func TestSenderUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := NewSender(relayConfig(port))
	err = sender.Verify(context.Background(), Credentials{})
	assert.ErrorContains(t, err, "dial failed")
}

func TestSenderNoRecipients(t *testing.T) {
	sender := NewSender(relayConfig(25))
	msg := testMessage()
	msg.To, msg.Cc, msg.Bcc = nil, nil, nil

	_, err := sender.Send(context.Background(), Credentials{}, msg)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestRelayCredentials(t *testing.T) {
	cfg := relayConfig(587)
	_, ok := NewSender(cfg).RelayCredentials()
	assert.False(t, ok)

	cfg.Username, cfg.Password = "relay", "pw"
	creds, ok := NewSender(cfg).RelayCredentials()
	assert.True(t, ok)
	assert.Equal(t, "relay", creds.Username)
	assert.Equal(t, "localhost", helloName("nobody"))
	assert.Equal(t, "mail.test", helloName("a@mail.test"))
}
