package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"webmail/utils"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Part is a file carried by a message, either attached or referenced from
// the HTML body by Content-ID
type Part struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// Message is an outgoing email
type Message struct {
	From      *mail.Address
	To        []*mail.Address
	Cc        []*mail.Address
	Bcc       []*mail.Address
	Subject   string
	HTML      string
	Text      string
	MessageID string
	Date      time.Time

	Attachments []Part
	Inline      []Part
}

// NewMessageID returns a unique Message-ID for domain, without angle brackets
func NewMessageID(domain string) string {
	return uuid.NewString() + "@" + domain
}

// ParseAddressList parses a comma separated recipient list. Blank lists
// yield no addresses.
func ParseAddressList(list string) ([]*mail.Address, error) {
	list = strings.TrimSpace(strings.Trim(strings.TrimSpace(list), ","))
	if list == "" {
		return nil, nil
	}
	return mail.ParseAddressList(list)
}

// Recipients lists the envelope recipients (To, Cc and Bcc)
func (m *Message) Recipients() []string {
	var out []string
	for _, list := range [][]*mail.Address{m.To, m.Cc, m.Bcc} {
		for _, a := range list {
			out = append(out, a.Address)
		}
	}
	return out
}

func (m *Message) header() mail.Header {
	var h mail.Header
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{m.From})
	h.SetAddressList("Reply-To", []*mail.Address{m.From})
	h.SetAddressList("To", m.To)
	if len(m.Cc) > 0 {
		h.SetAddressList("Cc", m.Cc)
	}
	h.SetSubject(m.Subject)
	if m.MessageID != "" {
		h.SetMessageID(m.MessageID)
	}
	h.Set("MIME-Version", "1.0")
	return h
}

// Write renders the message. Bcc recipients are never written.
//
//	multipart/mixed                 (only with attachments)
//	  multipart/related             (only with inline images)
//	    multipart/alternative
//	      text/plain, text/html
//	    inline images
//	  attachments
func (m *Message) Write(w io.Writer) error {
	if m.From == nil {
		return fmt.Errorf("message has no sender")
	}
	h := m.header()
	switch {
	case len(m.Attachments) > 0:
		h.SetContentType("multipart/mixed", nil)
	case len(m.Inline) > 0:
		h.SetContentType("multipart/related", map[string]string{"type": "multipart/alternative"})
	default:
		h.SetContentType("multipart/alternative", nil)
	}

	root, err := message.CreateWriter(w, h.Header)
	if err != nil {
		return err
	}

	switch {
	case len(m.Attachments) > 0:
		if len(m.Inline) > 0 {
			var rh message.Header
			rh.SetContentType("multipart/related", map[string]string{"type": "multipart/alternative"})
			related, err := root.CreatePart(rh)
			if err != nil {
				return err
			}
			if err := m.writeRelated(related); err != nil {
				return err
			}
			if err := related.Close(); err != nil {
				return err
			}
		} else if err := m.writeAlternativePart(root); err != nil {
			return err
		}
		for _, a := range m.Attachments {
			if err := writeFilePart(root, a, "attachment"); err != nil {
				return err
			}
		}
	case len(m.Inline) > 0:
		if err := m.writeRelated(root); err != nil {
			return err
		}
	default:
		if err := m.writeAlternative(root); err != nil {
			return err
		}
	}
	return root.Close()
}

// Bytes renders the message into memory
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Message) writeRelated(w *message.Writer) error {
	if err := m.writeAlternativePart(w); err != nil {
		return err
	}
	for _, p := range m.Inline {
		if err := writeFilePart(w, p, "inline"); err != nil {
			return err
		}
	}
	return nil
}

func (m *Message) writeAlternativePart(parent *message.Writer) error {
	var ah message.Header
	ah.SetContentType("multipart/alternative", nil)
	alt, err := parent.CreatePart(ah)
	if err != nil {
		return err
	}
	if err := m.writeAlternative(alt); err != nil {
		return err
	}
	return alt.Close()
}

func (m *Message) writeAlternative(w *message.Writer) error {
	text := m.Text
	if text == "" {
		text = utils.HTMLToText(m.HTML)
	}
	if err := writeTextPart(w, "text/plain", text); err != nil {
		return err
	}
	return writeTextPart(w, "text/html", m.HTML)
}

func writeTextPart(parent *message.Writer, contentType, body string) error {
	var h message.Header
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := parent.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(part, body); err != nil {
		return err
	}
	return part.Close()
}

func writeFilePart(parent *message.Writer, p Part, disposition string) error {
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	var h message.Header
	h.SetContentType(contentType, map[string]string{"name": p.Filename})
	h.SetContentDisposition(disposition, map[string]string{"filename": p.Filename})
	h.Set("Content-Transfer-Encoding", "base64")
	if p.ContentID != "" {
		h.Set("Content-ID", "<"+strings.Trim(p.ContentID, "<>")+">")
	}
	part, err := parent.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(p.Data); err != nil {
		return err
	}
	return part.Close()
}
