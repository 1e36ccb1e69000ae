package storage

import (
	"testing"
	"time"

	"webmail/models"

	"github.com/stretchr/testify/assert"
)

func subjects(emails []models.Email) []string {
	out := make([]string, len(emails))
	for i, e := range emails {
		out[i] = e.Subject
	}
	return out
}

func TestSortByFolderUsesFolderDate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sentEarly, sentLate := base.Add(time.Hour), base.Add(3*time.Hour)
	emails := []models.Email{
		{Subject: "a", SentAt: &sentEarly, UpdatedAt: base.Add(5 * time.Hour), CreatedAt: base},
		{Subject: "b", SentAt: &sentLate, UpdatedAt: base, CreatedAt: base},
		{Subject: "c", UpdatedAt: base.Add(time.Hour), CreatedAt: base.Add(2 * time.Hour)},
	}

	SortByFolder(emails, models.FolderSent)
	assert.Equal(t, []string{"b", "c", "a"}, subjects(emails))

	SortByFolder(emails, models.FolderDrafts)
	assert.Equal(t, []string{"a", "c", "b"}, subjects(emails))
}

func TestApplyEmailFilters(t *testing.T) {
	tagID := int64(7)
	emails := []models.Email{
		{Subject: "Zeta", FromName: "bob", IsRead: true, TagIDs: []int64{7}},
		{Subject: "alpha", FromAddress: "Carol@example.com", IsStarred: true},
		{Subject: "Beta", FromName: "Alice", Attachments: models.Attachments{{Filename: "x.txt"}}, TagIDs: []int64{3}},
	}

	tests := []struct {
		name    string
		filters models.EmailFilters
		want    []string
	}{
		{"all keeps order", models.EmailFilters{FilterBy: models.FilterAll}, []string{"Zeta", "alpha", "Beta"}},
		{"unread", models.EmailFilters{FilterBy: models.FilterUnread}, []string{"alpha", "Beta"}},
		{"starred", models.EmailFilters{FilterBy: models.FilterStarred}, []string{"alpha"}},
		{"attachments", models.EmailFilters{FilterBy: models.FilterAttachments}, []string{"Beta"}},
		{"any tag", models.EmailFilters{FilterBy: models.FilterTags}, []string{"Zeta", "Beta"}},
		{"one tag", models.EmailFilters{FilterBy: models.FilterTags, TagFilter: &tagID}, []string{"Zeta"}},
		{"sort by sender", models.EmailFilters{SortBy: models.SortSender}, []string{"Beta", "Zeta", "alpha"}},
		{"sort by subject", models.EmailFilters{SortBy: models.SortSubject}, []string{"alpha", "Beta", "Zeta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subjects(ApplyEmailFilters(emails, tt.filters)))
		})
	}
}

func TestMatchesQuery(t *testing.T) {
	e := &models.Email{Subject: "Meeting notes", Body: "<p>Budget</p>", FromName: "Dana", ToAddress: "team@example.com"}

	assert.True(t, MatchesQuery(e, "MEETING"))
	assert.True(t, MatchesQuery(e, "budget"))
	assert.True(t, MatchesQuery(e, "dana"))
	assert.True(t, MatchesQuery(e, "team@"))
	assert.True(t, MatchesQuery(e, ""))
	assert.False(t, MatchesQuery(e, "invoice"))
}

func TestPaginate(t *testing.T) {
	emails := make([]models.Email, 5)
	assert.Len(t, paginate(emails, 2, 0), 2)
	assert.Len(t, paginate(emails, 2, 4), 1)
	assert.Empty(t, paginate(emails, 2, 10))
}
