package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curius/feedsync/internal/cache"
	"github.com/curius/feedsync/internal/feed"
	"github.com/curius/feedsync/internal/models"
)

const (
	formatJSON = "json"
	formatRSS  = "rss"
)

type feedSaver struct {
	FollowingUser userJSON `json:"followingUser"`
	Order         int      `json:"order"`
}

type feedLink struct {
	ID          int64           `json:"id"`
	Link        string          `json:"link"`
	Title       string          `json:"title"`
	Snippet     string          `json:"snippet"`
	CreatedBy   int64           `json:"createdBy"`
	LastCrawled *time.Time      `json:"lastCrawled,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	SavedBy     []feedSaver     `json:"savedBy"`
	Timestamp   time.Time       `json:"timestamp"`
}

type feedResponse struct {
	Links []feedLink `json:"links"`
}

// GetFeed serves the aggregated feed. Without user_handle the feed is global
// and unattributed; with one it covers the user's follow graph up to the
// requested order.
func (r *Router) GetFeed(c *gin.Context) {
	handle := c.Query("user_handle")

	order, ok := parseBoundedInt(c.DefaultQuery("order", "1"), 0, 2)
	if !ok {
		respondError(c, NewError(http.StatusBadRequest, "order must be an integer between 0 and 2"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, NewError(http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	search := c.Query("search")

	format := c.DefaultQuery("format", formatJSON)
	if format != formatJSON && format != formatRSS {
		respondError(c, NewError(http.StatusBadRequest, "format must be json or rss"))
		return
	}

	// A cache hit answers before any store work, handle resolution included
	cacheKey := cache.HashKey("feed", handle, strconv.Itoa(order), strconv.Itoa(limit), search, format)
	if cached, err := r.cache.Get(cacheKey); err == nil {
		c.Data(http.StatusOK, contentType(format), []byte(cached))
		return
	}

	scope := feed.GlobalScope()
	if handle != "" {
		user, err := r.users.GetByHandle(c.Request.Context(), handle)
		if err != nil {
			r.logger.Error("Failed to look up user", zap.String("handle", handle), zap.Error(err))
			respondError(c, NewError(http.StatusInternalServerError, "failed to look up user"))
			return
		}
		if user == nil {
			respondError(c, ErrUserNotFound)
			return
		}

		g, err := r.resolver.Resolve(c.Request.Context(), user.ID, order)
		if err != nil {
			r.logger.Error("Failed to resolve follow graph", zap.Int64("user_id", user.ID), zap.Error(err))
			respondError(c, NewError(http.StatusInternalServerError, "failed to resolve follow graph"))
			return
		}
		scope = feed.ScopeFromGraph(g)
	}

	items, err := r.assembler.Assemble(c.Request.Context(), scope, limit, search)
	if err != nil {
		r.logger.Error("Failed to assemble feed", zap.String("handle", handle), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to assemble feed"))
		return
	}

	var payload []byte
	if format == formatRSS {
		rss, err := renderRSS(items, handle)
		if err != nil {
			r.logger.Error("Failed to render RSS", zap.Error(err))
			respondError(c, NewError(http.StatusInternalServerError, "failed to render feed"))
			return
		}
		payload = []byte(rss)
	} else {
		payload, err = json.Marshal(feedResponse{Links: feedLinks(items)})
		if err != nil {
			respondError(c, NewError(http.StatusInternalServerError, "failed to encode feed"))
			return
		}
	}

	if err := r.cache.Set(cacheKey, string(payload), r.feedTTL); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Failed to cache feed response", zap.Error(err))
	}

	c.Data(http.StatusOK, contentType(format), payload)
}

func feedLinks(items []feed.FeedItem) []feedLink {
	links := make([]feedLink, 0, len(items))
	for _, item := range items {
		savedBy := make([]feedSaver, 0, len(item.SavedBy))
		for _, a := range item.SavedBy {
			savedBy = append(savedBy, feedSaver{
				FollowingUser: userPayload(a.User),
				Order:         a.Order,
			})
		}
		links = append(links, feedLink{
			ID:          item.ID,
			Link:        item.URL,
			Title:       item.Title,
			Snippet:     item.Snippet,
			CreatedBy:   item.CreatedBy,
			LastCrawled: item.LastCrawled,
			Metadata:    json.RawMessage(item.Metadata),
			SavedBy:     savedBy,
			Timestamp:   item.Timestamp,
		})
	}
	return links
}

func contentType(format string) string {
	if format == formatRSS {
		return "application/rss+xml; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

func parseBoundedInt(raw string, min, max int) (int, bool) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}

type userJSON struct {
	ID           int64                   `json:"id"`
	FirstName    string                  `json:"firstName"`
	LastName     string                  `json:"lastName"`
	Handle       string                  `json:"userLink"`
	LastOnline   time.Time               `json:"lastOnline"`
	NumFollowers int                     `json:"numFollowers"`
	Metadata     *models.ProfileMetadata `json:"metadata,omitempty"`
}

func userPayload(u *models.User) userJSON {
	// Placeholder rows have no real follower count yet
	followers := u.NumFollowers
	if u.IsPlaceholder() {
		followers = 0
	}
	return userJSON{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Handle:       u.Handle,
		LastOnline:   u.LastOnline,
		NumFollowers: followers,
		Metadata:     u.ProfileMetadata,
	}
}
