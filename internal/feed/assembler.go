package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/curius/feedsync/internal/db"
	"github.com/curius/feedsync/internal/graph"
	"github.com/curius/feedsync/internal/models"
	"github.com/curius/feedsync/pkg/logging"
)

const (
	// MaxLimit caps the number of items regardless of caller input
	MaxLimit = 500
	// DefaultLimit applies when the caller does not supply one
	DefaultLimit = 100
)

// LinkStore serves ranked link queries
type LinkStore interface {
	ScopedRecent(ctx context.Context, userIDs []int64, limit int, search string) ([]db.RankedLink, error)
	GlobalRecent(ctx context.Context, limit int, search string) ([]db.RankedLink, error)
}

// SavedLinkStore serves save-event lookups
type SavedLinkStore interface {
	SaversByLinkIDs(ctx context.Context, linkIDs []int64) ([]models.SavedLink, error)
}

// UserStore serves user lookups for attribution
type UserStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
}

// Scope restricts a feed to users reached within a follow graph. The zero
// value is the global scope (no user filter, no attribution).
type Scope struct {
	orders map[int64]int
}

// GlobalScope returns the unrestricted scope
func GlobalScope() Scope {
	return Scope{}
}

// ScopeFromGraph derives a scope from a resolved follow graph: the root plus
// everyone reached, each carrying their hop order.
func ScopeFromGraph(g *graph.FollowGraph) Scope {
	return Scope{orders: g.UserOrders()}
}

// Global reports whether the scope has no user filter
func (s Scope) Global() bool {
	return s.orders == nil
}

// Order returns the hop order of a user within the scope
func (s Scope) Order(id int64) (int, bool) {
	order, ok := s.orders[id]
	return order, ok
}

// UserIDs returns the scope members in ascending ID order
func (s Scope) UserIDs() []int64 {
	ids := make([]int64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Attribution credits one in-network user for a feed item
type Attribution struct {
	User  *models.User
	Order int
}

// FeedItem is one assembled entry: a link, who in the network saved it, and
// the save event that ranks it.
type FeedItem struct {
	ID          int64
	URL         string
	Title       string
	Snippet     string
	CreatedBy   int64
	LastCrawled *time.Time
	Metadata    models.JSONB
	SavedBy     []Attribution
	Timestamp   time.Time
}

// Assembler builds ranked, attributed feeds from the local store and a
// resolved follow graph. Read-only and stateless.
type Assembler struct {
	links  LinkStore
	saves  SavedLinkStore
	users  UserStore
	logger *zap.Logger
}

// NewAssembler creates a new feed assembler
func NewAssembler(links LinkStore, saves SavedLinkStore, users UserStore) *Assembler {
	return &Assembler{
		links:  links,
		saves:  saves,
		users:  users,
		logger: logging.GetLogger().With(zap.String("component", "feed-assembler")),
	}
}

// Assemble returns feed items for the scope, most recent save first. Links
// rank by the latest save event among in-scope savers (or among all savers
// for the global scope), never by their own creation time. A search filters
// the recency-ranked candidates; it does not bypass them.
func (a *Assembler) Assemble(ctx context.Context, scope Scope, limit int, search string) ([]FeedItem, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var (
		ranked []db.RankedLink
		err    error
	)
	if scope.Global() {
		ranked, err = a.links.GlobalRecent(ctx, limit, search)
	} else {
		scopeIDs := scope.UserIDs()
		if len(scopeIDs) == 0 {
			return []FeedItem{}, nil
		}
		ranked, err = a.links.ScopedRecent(ctx, scopeIDs, limit, search)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	if len(ranked) == 0 {
		return []FeedItem{}, nil
	}

	linkIDs := make([]int64, 0, len(ranked))
	for _, l := range ranked {
		linkIDs = append(linkIDs, l.ID)
	}

	saves, err := a.saves.SaversByLinkIDs(ctx, linkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query savers: %w", err)
	}

	saversByLink := make(map[int64][]int64)
	for _, s := range saves {
		saversByLink[s.LinkID] = append(saversByLink[s.LinkID], s.UserID)
	}

	userMap, err := a.resolveUsers(ctx, scope, ranked, saversByLink)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(ranked))
	for _, l := range ranked {
		items = append(items, FeedItem{
			ID:          l.ID,
			URL:         l.URL,
			Title:       l.Title,
			Snippet:     l.Snippet,
			CreatedBy:   l.CreatedBy,
			LastCrawled: nullableTime(l.LastCrawled.Valid, l.LastCrawled.Time),
			Metadata:    l.Metadata,
			SavedBy:     a.attribution(scope, l, saversByLink[l.ID], userMap),
			Timestamp:   l.LastSavedAt,
		})
	}

	return items, nil
}

// attribution builds the saved-by list: in-scope savers ordered by hop then
// ID, with the creator prepended when in scope and not already a saver.
// An empty list is a valid state for unscoped items.
func (a *Assembler) attribution(scope Scope, link db.RankedLink, saverIDs []int64, userMap map[int64]*models.User) []Attribution {
	if scope.Global() {
		return []Attribution{}
	}

	type scopedSaver struct {
		id    int64
		order int
	}
	var savers []scopedSaver
	creatorSaved := false
	for _, id := range saverIDs {
		order, ok := scope.Order(id)
		if !ok {
			continue
		}
		if id == link.CreatedBy {
			creatorSaved = true
		}
		savers = append(savers, scopedSaver{id: id, order: order})
	}
	sort.Slice(savers, func(i, j int) bool {
		if savers[i].order != savers[j].order {
			return savers[i].order < savers[j].order
		}
		return savers[i].id < savers[j].id
	})

	result := make([]Attribution, 0, len(savers)+1)
	if order, ok := scope.Order(link.CreatedBy); ok && !creatorSaved {
		if creator := userMap[link.CreatedBy]; creator != nil {
			result = append(result, Attribution{User: creator, Order: order})
		}
	}
	for _, s := range savers {
		if user := userMap[s.id]; user != nil {
			result = append(result, Attribution{User: user, Order: s.order})
		}
	}

	return result
}

// resolveUsers fetches every user record attribution will reference
func (a *Assembler) resolveUsers(ctx context.Context, scope Scope, ranked []db.RankedLink, saversByLink map[int64][]int64) (map[int64]*models.User, error) {
	if scope.Global() {
		return nil, nil
	}

	needed := make(map[int64]bool)
	for _, l := range ranked {
		if _, ok := scope.Order(l.CreatedBy); ok {
			needed[l.CreatedBy] = true
		}
		for _, id := range saversByLink[l.ID] {
			if _, ok := scope.Order(id); ok {
				needed[id] = true
			}
		}
	}
	if len(needed) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}

	users, err := a.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attribution users: %w", err)
	}

	userMap := make(map[int64]*models.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	return userMap, nil
}

func nullableTime(valid bool, t time.Time) *time.Time {
	if !valid {
		return nil
	}
	return &t
}
