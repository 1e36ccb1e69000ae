package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Email priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Email is a stored message. Address, subject and body columns are encrypted
// at rest; values in this struct are always plaintext.
type Email struct {
	ID             int64       `db:"id" json:"id"`
	UserID         int64       `db:"userId" json:"userId"`
	FolderID       int64       `db:"folderId" json:"folderId"`
	MessageID      *string     `db:"messageId" json:"messageId"`
	ThreadID       string      `db:"threadId" json:"threadId"`
	FromAddress    string      `db:"fromAddress" json:"fromAddress"`
	FromName       string      `db:"fromName" json:"fromName"`
	ToAddress      string      `db:"toAddress" json:"toAddress"`
	CcAddress      string      `db:"ccAddress" json:"ccAddress"`
	BccAddress     string      `db:"bccAddress" json:"bccAddress"`
	Subject        string      `db:"subject" json:"subject"`
	Body           string      `db:"body" json:"body"`
	Attachments    Attachments `db:"attachments" json:"attachments"`
	HasAttachments bool        `db:"hasAttachments" json:"hasAttachments"`
	IsRead         bool        `db:"isRead" json:"isRead"`
	IsStarred      bool        `db:"isStarred" json:"isStarred"`
	IsDraft        bool        `db:"isDraft" json:"isDraft"`
	IsActiveDraft  bool        `db:"isActiveDraft" json:"isActiveDraft"`
	Priority       string      `db:"priority" json:"priority"`
	SentAt         *time.Time  `db:"sentAt" json:"sentAt"`
	ReceivedAt     *time.Time  `db:"receivedAt" json:"receivedAt"`
	CreatedAt      time.Time   `db:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updatedAt" json:"updatedAt"`

	Tags   []string `db:"-" json:"tags"`
	TagIDs []int64   `db:"-" json:"-"`
}

// SortTime is the timestamp used to order emails outside drafts and sent
func (e *Email) SortTime() time.Time {
	if e.ReceivedAt != nil {
		return *e.ReceivedAt
	}
	return e.CreatedAt
}

// Attachment describes a file attached to an email. Content carries base64
// data for attachments that were never uploaded to the user's storage.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
	Content  string `json:"content,omitempty"`
}

// Attachments is stored as a JSON column
type Attachments []Attachment

// Scan implements sql.Scanner
func (a *Attachments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Attachments", src)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*a = nil
		return nil
	}
	return json.Unmarshal(raw, a)
}

// Value implements driver.Valuer
func (a Attachments) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Stored drops inline content from attachments that live on disk
func (a Attachments) Stored() Attachments {
	if a == nil {
		return nil
	}
	out := make(Attachments, len(a))
	for i, att := range a {
		if att.Path != "" {
			att.Content = ""
		}
		out[i] = att
	}
	return out
}

// Paths lists the storage paths referenced by the attachments
func (a Attachments) Paths() []string {
	var paths []string
	for _, att := range a {
		if att.Path != "" {
			paths = append(paths, att.Path)
		}
	}
	return paths
}

// FlexBool decodes booleans sent as true, "true", 1 or "1"
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// FlexInt decodes integers sent as numbers or numeric strings
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", data)
	}
	*n = FlexInt(v)
	return nil
}

// NewEmail is the input for creating an email
type NewEmail struct {
	UserID      int64       `json:"-"`
	FolderID    FlexInt     `json:"folderId"`
	MessageID   string      `json:"messageId"`
	ThreadID    string      `json:"threadId"`
	FromAddress string      `json:"fromAddress"`
	FromName    string      `json:"fromName"`
	ToAddress   string      `json:"toAddress"`
	CcAddress   string      `json:"ccAddress"`
	BccAddress  string      `json:"bccAddress"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	Attachments Attachments `json:"attachments"`
	IsRead      FlexBool    `json:"isRead"`
	IsStarred   FlexBool    `json:"isStarred"`
	IsDraft     FlexBool    `json:"isDraft"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=low normal high"`
	ReceivedAt  *time.Time  `json:"receivedAt"`
}

// EmailUpdate is a partial email update; nil fields are left unchanged
type EmailUpdate struct {
	FolderID    *FlexInt     `json:"folderId"`
	MessageID   *string      `json:"messageId"`
	ThreadID    *string      `json:"threadId"`
	FromAddress *string      `json:"fromAddress"`
	FromName    *string      `json:"fromName"`
	ToAddress   *string      `json:"toAddress"`
	CcAddress   *string      `json:"ccAddress"`
	BccAddress  *string      `json:"bccAddress"`
	Subject     *string      `json:"subject"`
	Body        *string      `json:"body"`
	Attachments *Attachments `json:"attachments"`
	IsRead      *FlexBool    `json:"isRead"`
	IsStarred   *FlexBool    `json:"isStarred"`
	IsDraft     *FlexBool    `json:"isDraft"`
	Priority    *string      `json:"priority" validate:"omitempty,oneof=low normal high"`
}
