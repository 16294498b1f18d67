package feed

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/curius/feedsync/internal/db"
	"github.com/curius/feedsync/internal/graph"
	"github.com/curius/feedsync/internal/models"
)

type fakeLinks struct {
	ranked []db.RankedLink

	scopedCalls int
	globalCalls int
	lastUserIDs []int64
	lastLimit   int
	lastSearch  string
}

func (f *fakeLinks) ScopedRecent(ctx context.Context, userIDs []int64, limit int, search string) ([]db.RankedLink, error) {
	f.scopedCalls++
	f.lastUserIDs = userIDs
	f.lastLimit = limit
	f.lastSearch = search
	return f.ranked, nil
}

func (f *fakeLinks) GlobalRecent(ctx context.Context, limit int, search string) ([]db.RankedLink, error) {
	f.globalCalls++
	f.lastLimit = limit
	f.lastSearch = search
	return f.ranked, nil
}

type fakeSaves struct {
	saves []models.SavedLink
	calls int
}

func (f *fakeSaves) SaversByLinkIDs(ctx context.Context, linkIDs []int64) ([]models.SavedLink, error) {
	f.calls++
	return f.saves, nil
}

type fakeUsers struct {
	users map[int64]*models.User
	calls int
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	f.calls++
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type edgeStore struct {
	edges map[int64][]int64
}

func (s *edgeStore) FollowingIDs(ctx context.Context, followerIDs []int64) ([]int64, error) {
	var out []int64
	for _, id := range followerIDs {
		out = append(out, s.edges[id]...)
	}
	return out, nil
}

// scopeOf resolves a two-hop graph rooted at user 1 over 1->2, 2->3
func scopeOf(t *testing.T) Scope {
	t.Helper()
	g, err := graph.NewResolver(&edgeStore{edges: map[int64][]int64{
		1: {2},
		2: {3},
	}}).Resolve(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return ScopeFromGraph(g)
}

func testUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*models.User{
		1: {ID: 1, FirstName: "Ada", Handle: "ada"},
		2: {ID: 2, FirstName: "Alan", Handle: "alan"},
		3: {ID: 3, FirstName: "Grace", Handle: "grace"},
	}}
}

func ranked(id int64, createdBy int64, savedAt time.Time) db.RankedLink {
	return db.RankedLink{
		ID:          id,
		URL:         "https://example.com",
		Title:       "Example",
		CreatedBy:   createdBy,
		LastCrawled: sql.NullTime{Time: savedAt, Valid: true},
		LastSavedAt: savedAt,
	}
}

func TestAssembleAttribution(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	links := &fakeLinks{ranked: []db.RankedLink{
		ranked(10, 2, now),
		ranked(11, 99, now.Add(-time.Hour)),
	}}
	saves := &fakeSaves{saves: []models.SavedLink{
		{UserID: 3, LinkID: 10, SavedAt: now},
		{UserID: 2, LinkID: 10, SavedAt: now.Add(-time.Minute)},
		{UserID: 1, LinkID: 11, SavedAt: now.Add(-time.Hour)},
		{UserID: 50, LinkID: 11, SavedAt: now},
	}}

	a := NewAssembler(links, saves, testUsers())
	items, err := a.Assemble(context.Background(), scopeOf(t), 10, "")
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != 10 || items[1].ID != 11 {
		t.Errorf("store ranking order must be preserved, got %d, %d", items[0].ID, items[1].ID)
	}

	// Link 10: creator (user 2) is also a saver, so no prepend; savers
	// sorted by hop order then ID.
	got := items[0].SavedBy
	if len(got) != 2 || got[0].User.ID != 2 || got[0].Order != 1 || got[1].User.ID != 3 || got[1].Order != 2 {
		t.Errorf("unexpected attribution for link 10: %+v", got)
	}

	// Link 11: out-of-scope creator and saver both dropped
	got = items[1].SavedBy
	if len(got) != 1 || got[0].User.ID != 1 || got[0].Order != 0 {
		t.Errorf("unexpected attribution for link 11: %+v", got)
	}
}

func TestAssembleCreatorPrepended(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	links := &fakeLinks{ranked: []db.RankedLink{ranked(10, 1, now)}}
	saves := &fakeSaves{saves: []models.SavedLink{
		{UserID: 3, LinkID: 10, SavedAt: now},
	}}

	a := NewAssembler(links, saves, testUsers())
	items, err := a.Assemble(context.Background(), scopeOf(t), 10, "")
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	got := items[0].SavedBy
	if len(got) != 2 {
		t.Fatalf("expected creator plus saver, got %+v", got)
	}
	if got[0].User.ID != 1 || got[0].Order != 0 {
		t.Errorf("expected creator first, got %+v", got[0])
	}
	if got[1].User.ID != 3 || got[1].Order != 2 {
		t.Errorf("expected saver second, got %+v", got[1])
	}
}

func TestAssembleGlobalScope(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	links := &fakeLinks{ranked: []db.RankedLink{ranked(10, 2, now)}}
	saves := &fakeSaves{saves: []models.SavedLink{{UserID: 2, LinkID: 10, SavedAt: now}}}
	users := testUsers()

	a := NewAssembler(links, saves, users)
	items, err := a.Assemble(context.Background(), GlobalScope(), 10, "")
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}

	if links.globalCalls != 1 || links.scopedCalls != 0 {
		t.Errorf("expected the unscoped query, got scoped=%d global=%d", links.scopedCalls, links.globalCalls)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if len(items[0].SavedBy) != 0 {
		t.Errorf("global feed carries no attribution, got %+v", items[0].SavedBy)
	}
	if users.calls != 0 {
		t.Errorf("global feed must not resolve users, got %d calls", users.calls)
	}
}

func TestAssembleLimitClamp(t *testing.T) {
	links := &fakeLinks{}
	a := NewAssembler(links, &fakeSaves{}, testUsers())

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, DefaultLimit},
		{"negative uses default", -5, DefaultLimit},
		{"over ceiling clamped", 9999, MaxLimit},
		{"in range passes through", 42, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Assemble(context.Background(), scopeOf(t), tt.limit, ""); err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}
			if links.lastLimit != tt.want {
				t.Errorf("expected limit %d, got %d", tt.want, links.lastLimit)
			}
		})
	}
}

func TestAssembleSearchPassedThrough(t *testing.T) {
	links := &fakeLinks{}
	a := NewAssembler(links, &fakeSaves{}, testUsers())

	if _, err := a.Assemble(context.Background(), scopeOf(t), 10, "distributed systems"); err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if links.lastSearch != "distributed systems" {
		t.Errorf("expected search forwarded, got %q", links.lastSearch)
	}
	if len(links.lastUserIDs) != 3 {
		t.Errorf("expected the full scope in the query, got %v", links.lastUserIDs)
	}
}

func TestAssembleNoLinks(t *testing.T) {
	links := &fakeLinks{}
	saves := &fakeSaves{}
	a := NewAssembler(links, saves, testUsers())

	items, err := a.Assemble(context.Background(), scopeOf(t), 10, "")
	if err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil result, got %v", items)
	}
	if saves.calls != 0 {
		t.Error("no saver lookup expected for an empty feed")
	}
}
