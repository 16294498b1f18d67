package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/curius/feedsync/internal/models"
	"github.com/curius/feedsync/internal/source"
)

// dateLayouts covers the formats upstream emits for link dates
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", value)
}

// UserFromProfile converts a full profile into a hydrated user row, folding
// the scattered optional profile fields into the metadata blob.
func UserFromProfile(p *source.UserProfile) (*models.User, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("profile missing id")
	}
	if p.Handle == "" {
		return nil, fmt.Errorf("profile %d missing handle", p.ID)
	}
	if p.NumFollowers < 0 {
		return nil, fmt.Errorf("profile %d has invalid follower count %d", p.ID, p.NumFollowers)
	}

	return &models.User{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Handle:       p.Handle,
		LastOnline:   p.LastOnline,
		NumFollowers: p.NumFollowers,
		ProfileMetadata: &models.ProfileMetadata{
			Major:     p.Major,
			Interests: p.Interests,
			Expertise: p.Expertise,
			School:    p.School,
			Github:    p.Github,
			Twitter:   p.Twitter,
			Website:   p.Website,
			Views:     p.Views,
		},
	}, nil
}

// PlaceholderFromSummary converts a followee summary into a placeholder user
// row, created only to satisfy the follow edge's foreign key.
func PlaceholderFromSummary(s source.UserSummary) (*models.User, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("followee missing id")
	}
	return models.NewPlaceholder(s.ID, s.FirstName, s.LastName, s.Handle, s.LastOnline), nil
}

// FollowsFromProfile converts a profile's following list into follow edges
func FollowsFromProfile(p *source.UserProfile) []models.Follow {
	follows := make([]models.Follow, 0, len(p.FollowingUsers))
	for _, f := range p.FollowingUsers {
		follows = append(follows, models.Follow{
			FollowerID:  p.ID,
			FollowingID: f.ID,
		})
	}
	return follows
}

// LinkFromContent converts an upstream content record into a link row.
// The full_text metadata key is lifted into the fulltext column and removed
// from the stored blob; lastCrawled falls back to the modified date.
func LinkFromContent(c source.Content, fallbackCreatedBy int64) (*models.Link, error) {
	if c.ID == 0 {
		return nil, fmt.Errorf("content missing id")
	}
	if c.Link == "" {
		return nil, fmt.Errorf("content %d missing link", c.ID)
	}

	modified, err := parseDate(c.ModifiedDate)
	if err != nil {
		return nil, fmt.Errorf("content %d: invalid modifiedDate: %w", c.ID, err)
	}

	fulltext, metadata, err := splitFulltext(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("content %d: invalid metadata: %w", c.ID, err)
	}

	lastCrawled := modified
	if c.LastCrawled != nil {
		if t, err := parseDate(*c.LastCrawled); err == nil {
			lastCrawled = t
		}
	}

	createdBy := fallbackCreatedBy
	if c.CreatedBy != nil {
		createdBy = *c.CreatedBy
	}

	snippet := ""
	if c.Snippet != nil {
		snippet = *c.Snippet
	}

	return &models.Link{
		ID:          c.ID,
		URL:         c.Link,
		Title:       c.Title,
		Snippet:     snippet,
		Fulltext:    fulltext,
		CreatedBy:   createdBy,
		LastCrawled: sql.NullTime{Time: lastCrawled, Valid: true},
		Metadata:    metadata,
	}, nil
}

// SavedLinkFromContent converts a content record into a save event for the
// syncing user. The content's createdDate is when that user saved the link.
func SavedLinkFromContent(c source.Content, userID int64) (models.SavedLink, error) {
	savedAt, err := parseDate(c.CreatedDate)
	if err != nil {
		return models.SavedLink{}, fmt.Errorf("content %d: invalid createdDate: %w", c.ID, err)
	}
	return models.SavedLink{
		UserID:  userID,
		LinkID:  c.ID,
		SavedAt: savedAt,
	}, nil
}

// splitFulltext extracts the full_text key from an opaque metadata blob,
// returning the text and the blob with the key removed.
func splitFulltext(raw json.RawMessage) (sql.NullString, models.JSONB, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return sql.NullString{}, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return sql.NullString{}, nil, err
	}

	var fulltext sql.NullString
	if ftRaw, ok := fields["full_text"]; ok {
		var ft string
		// Non-string full_text values stay in the blob untouched
		if err := json.Unmarshal(ftRaw, &ft); err == nil {
			fulltext = sql.NullString{String: ft, Valid: true}
			delete(fields, "full_text")
		}
	}

	if len(fields) == 0 {
		return fulltext, nil, nil
	}

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return sql.NullString{}, nil, err
	}
	return fulltext, models.JSONB(cleaned), nil
}
