package models

import "time"

// User represents a mailbox owner
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password" json:"-"` // Never expose in JSON
	FirstName      string    `db:"firstName" json:"firstName"`
	LastName       string    `db:"lastName" json:"lastName"`
	ProfilePicture string    `db:"profilePicture" json:"profilePicture"`
	Signature      string    `db:"signature" json:"signature"`
	StorageUsed    int64     `db:"storageUsed" json:"storageUsed"`
	StorageQuota   int64     `db:"storageQuota" json:"storageQuota"`
	Language       string    `db:"language" json:"language"`
	Theme          string    `db:"theme" json:"theme"`
	AvatarShape    string    `db:"avatarShape" json:"avatarShape"`
	SidebarView    string    `db:"sidebarView" json:"sidebarView"`
	EmailsPerPage  int       `db:"emailsPerPage" json:"emailsPerPage"`
	StayLoggedIn   bool      `db:"stayLoggedIn" json:"stayLoggedIn"`
	CreatedAt      time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `db:"updatedAt" json:"updatedAt"`
}

// DisplayName returns "first last", falling back to the address
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// NewUser holds the fields needed to register an account
type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	Password     string
	StorageQuota int64
	Language     string
}

// UserUpdate is a partial profile update. Nil or empty fields are left as is.
type UserUpdate struct {
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Signature     *string `json:"signature"`
	Language      *string `json:"language" validate:"omitempty,oneof=en pt"`
	Theme         *string `json:"theme" validate:"omitempty,max=20"`
	AvatarShape   *string `json:"avatarShape" validate:"omitempty,max=20"`
	SidebarView   *string `json:"sidebarView" validate:"omitempty,max=20"`
	EmailsPerPage *int    `json:"emailsPerPage" validate:"omitempty,min=5,max=100"`
	StayLoggedIn  *bool   `json:"stayLoggedIn"`
}

// StorageInfo reports how much of the quota a user has consumed
type StorageInfo struct {
	Used  int64 `json:"used"`
	Quota int64 `json:"quota"`
}
