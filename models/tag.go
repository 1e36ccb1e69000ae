package models

import "time"

// DefaultTagColor is used when a tag is created without a color
const DefaultTagColor = "#3b82f6"

// Tag is a user-defined label attachable to emails
type Tag struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"userId" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// EmailTag represents the association between an email and a tag
type EmailTag struct {
	ID        int64     `db:"id" json:"id"`
	EmailID   int64     `db:"emailId" json:"emailId"`
	TagID     int64     `db:"tagId" json:"tagId"`
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
}

// TagInput is the body of tag create and update requests
type TagInput struct {
	Name  string `json:"name" validate:"omitempty,min=1,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}
