package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/curius/feedsync/internal/feed"
)

const siteURL = "https://curius.app"

// renderRSS serializes assembled feed items as RSS 2.0
func renderRSS(items []feed.FeedItem, handle string) (string, error) {
	title := "Curius"
	description := "Recently saved links across Curius"
	if handle != "" {
		title = fmt.Sprintf("Curius network feed for %s", handle)
		description = fmt.Sprintf("Links recently saved across %s's follow network", handle)
	}

	updated := time.Time{}
	if len(items) > 0 {
		updated = items[0].Timestamp
	}

	out := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: siteURL},
		Description: description,
		Updated:     updated,
	}

	for _, item := range items {
		out.Items = append(out.Items, &feeds.Item{
			Id:          fmt.Sprintf("curius-%d", item.ID),
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.URL},
			Description: itemDescription(item),
			Created:     item.Timestamp,
		})
	}

	return out.ToRss()
}

func itemDescription(item feed.FeedItem) string {
	var b strings.Builder
	b.WriteString(item.Snippet)

	if len(item.SavedBy) > 0 {
		names := make([]string, 0, len(item.SavedBy))
		for _, a := range item.SavedBy {
			names = append(names, a.User.FullName())
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Saved by ")
		b.WriteString(strings.Join(names, ", "))
	}

	return b.String()
}
