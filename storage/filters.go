package storage

import (
	"sort"
	"strings"
	"time"

	"webmail/models"
)

// folderSortTime is the base ordering timestamp for a folder listing
func folderSortTime(e *models.Email, folderKey string) time.Time {
	switch folderKey {
	case models.FolderDrafts:
		return e.UpdatedAt
	case models.FolderSent:
		if e.SentAt != nil {
			return *e.SentAt
		}
		return e.CreatedAt
	default:
		return e.SortTime()
	}
}

// SortByFolder orders emails newest first using the folder's date field
func SortByFolder(emails []models.Email, folderKey string) {
	sort.SliceStable(emails, func(i, j int) bool {
		return folderSortTime(&emails[i], folderKey).After(folderSortTime(&emails[j], folderKey))
	})
}

// ApplyEmailFilters narrows emails by filterBy and reorders them by sortBy.
// The date order of the input is kept for ties.
func ApplyEmailFilters(emails []models.Email, filters models.EmailFilters) []models.Email {
	filtered := make([]models.Email, 0, len(emails))
	for _, e := range emails {
		if matchesFilter(&e, filters) {
			filtered = append(filtered, e)
		}
	}

	switch filters.SortBy {
	case models.SortSender:
		sort.SliceStable(filtered, func(i, j int) bool {
			return senderKey(&filtered[i]) < senderKey(&filtered[j])
		})
	case models.SortSubject:
		sort.SliceStable(filtered, func(i, j int) bool {
			return strings.ToLower(filtered[i].Subject) < strings.ToLower(filtered[j].Subject)
		})
	}
	return filtered
}

func matchesFilter(e *models.Email, filters models.EmailFilters) bool {
	switch filters.FilterBy {
	case models.FilterUnread:
		return !e.IsRead
	case models.FilterStarred:
		return e.IsStarred
	case models.FilterAttachments:
		return len(e.Attachments) > 0
	case models.FilterTags:
		if filters.TagFilter == nil {
			return len(e.TagIDs) > 0
		}
		for _, id := range e.TagIDs {
			if id == *filters.TagFilter {
				return true
			}
		}
		return false
	}
	return true
}

func senderKey(e *models.Email) string {
	if e.FromName != "" {
		return strings.ToLower(e.FromName)
	}
	return strings.ToLower(e.FromAddress)
}

// MatchesQuery reports whether the lowercased query occurs in the subject,
// body, sender or recipients of the email
func MatchesQuery(e *models.Email, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range []string{e.Subject, e.Body, e.FromName, e.FromAddress, e.ToAddress} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func paginate(emails []models.Email, limit, offset int) []models.Email {
	if offset >= len(emails) {
		return []models.Email{}
	}
	end := offset + limit
	if end > len(emails) {
		end = len(emails)
	}
	return emails[offset:end]
}
