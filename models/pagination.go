package models

// Folder listing filters
const (
	FilterAll         = "all"
	FilterUnread      = "unread"
	FilterStarred     = "starred"
	FilterAttachments = "attachments"
	FilterTags        = "tags"

	SortDate    = "date"
	SortSender  = "sender"
	SortSubject = "subject"
)

// EmailFilters narrows and orders a folder listing
type EmailFilters struct {
	FilterBy  string
	SortBy    string
	TagFilter *int64
}

// PaginatedEmails represents a page of a folder listing
type PaginatedEmails struct {
	Emails      []Email `json:"emails"`
	TotalCount  int     `json:"totalCount"`
	HasMore     bool    `json:"hasMore"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
}

// NewPaginatedEmails creates a new paginated emails response
func NewPaginatedEmails(emails []Email, total, limit, offset int) *PaginatedEmails {
	if emails == nil {
		emails = []Email{}
	}
	if limit <= 0 {
		limit = 20
	}

	return &PaginatedEmails{
		Emails:      emails,
		TotalCount:  total,
		HasMore:     offset+limit < total,
		CurrentPage: offset/limit + 1,
		TotalPages:  (total + limit - 1) / limit,
	}
}
