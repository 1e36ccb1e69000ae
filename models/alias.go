package models

import "time"

// Alias is a forwarding address owned by a user
type Alias struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"userId" json:"userId"`
	AliasName   string    `db:"aliasName" json:"aliasName"`
	ForwardTo   string    `db:"forwardTo" json:"forwardTo"`
	IsActive    bool      `db:"isActive" json:"isActive"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `db:"updatedAt" json:"updatedAt"`
}

// AliasInput is the body of alias create requests
type AliasInput struct {
	AliasName   string    `json:"aliasName" validate:"required,min=1,max=100"`
	ForwardTo   string    `json:"forwardTo" validate:"required,email"`
	IsActive    *FlexBool `json:"isActive"`
	Description string    `json:"description"`
}

// AliasUpdate is a partial alias update
type AliasUpdate struct {
	AliasName   *string   `json:"aliasName" validate:"omitempty,min=1,max=100"`
	ForwardTo   *string   `json:"forwardTo" validate:"omitempty,email"`
	IsActive    *FlexBool `json:"isActive"`
	Description *string   `json:"description"`
}

// BlockedSender is an address whose mail goes to junk
type BlockedSender struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"userId" json:"userId"`
	BlockedEmail string    `db:"blockedEmail" json:"blockedEmail"`
	CreatedAt    time.Time `db:"createdAt" json:"createdAt"`
}

// BlockedSenderInput is the body of block requests. EmailID optionally names
// the message that triggered the block; it is moved to junk.
type BlockedSenderInput struct {
	BlockedEmail string `json:"blockedEmail" validate:"required,email"`
	EmailID      *int64 `json:"emailId"`
}
