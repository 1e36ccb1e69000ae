package models

import (
	"strings"
	"time"
)

// Folder types
const (
	FolderTypeSystem = "system"
	FolderTypeCustom = "custom"
)

// System folder keys. Starred is virtual: it lists starred emails of any folder.
const (
	FolderInbox   = "inbox"
	FolderArchive = "archive"
	FolderSent    = "sent"
	FolderDrafts  = "drafts"
	FolderJunk    = "junk"
	FolderTrash   = "trash"
	FolderStarred = "starred"
)

// Static ids of the system folders
const (
	InboxFolderID   int64 = 1
	ArchiveFolderID int64 = 2
	SentFolderID    int64 = 3
	DraftsFolderID  int64 = 4
	JunkFolderID    int64 = 5
	TrashFolderID   int64 = 6
)

// Folder is a system or custom email container
type Folder struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"userId" json:"userId"`
	Name       string    `db:"name" json:"name"`
	Type       string    `db:"type" json:"type"`
	SystemType string    `db:"systemType" json:"systemType,omitempty"`
	Icon       string    `db:"icon" json:"icon"`
	Color      string    `db:"color" json:"color"`
	CreatedAt  time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `db:"updatedAt" json:"updatedAt"`
}

var systemFolders = []Folder{
	{ID: InboxFolderID, Name: "Inbox", SystemType: FolderInbox, Color: "#6366f1", Icon: "inbox"},
	{ID: ArchiveFolderID, Name: "Archive", SystemType: FolderArchive, Color: "#f59e0b", Icon: "archive"},
	{ID: SentFolderID, Name: "Sent", SystemType: FolderSent, Color: "#10b981", Icon: "send"},
	{ID: DraftsFolderID, Name: "Drafts", SystemType: FolderDrafts, Color: "#8b5cf6", Icon: "file-text"},
	{ID: JunkFolderID, Name: "Junk", SystemType: FolderJunk, Color: "#f97316", Icon: "alert-triangle"},
	{ID: TrashFolderID, Name: "Trash", SystemType: FolderTrash, Color: "#ef4444", Icon: "trash2"},
}

// SystemFolders returns the static system folders for a user
func SystemFolders(userID int64) []Folder {
	out := make([]Folder, len(systemFolders))
	for i, f := range systemFolders {
		f.UserID = userID
		f.Type = FolderTypeSystem
		out[i] = f
	}
	return out
}

// SystemFolderID maps a system key (case-insensitive) to its static id
func SystemFolderID(key string) (int64, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range systemFolders {
		if f.SystemType == key {
			return f.ID, true
		}
	}
	return 0, false
}

// SystemFolderKey maps a static id back to its system key
func SystemFolderKey(id int64) (string, bool) {
	for _, f := range systemFolders {
		if f.ID == id {
			return f.SystemType, true
		}
	}
	return "", false
}

// IsSystemFolderID reports whether id belongs to the static system range
func IsSystemFolderID(id int64) bool {
	_, ok := SystemFolderKey(id)
	return ok
}

// FolderInput is the body of folder create and update requests
type FolderInput struct {
	Name  string `json:"name" validate:"omitempty,min=1,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	Icon  string `json:"icon" validate:"omitempty,max=50"`
}
