package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/curius/feedsync/internal/models"
	"github.com/curius/feedsync/pkg/config"
)

// testDB connects to the Postgres database named by CURIUS_TEST_DATABASE_URL
// and resets the tables. Skipped when the variable is unset.
func testDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("CURIUS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CURIUS_TEST_DATABASE_URL not set")
	}

	database, err := New(&config.DatabaseConfig{URL: dsn}, "ERROR")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if err := database.Exec("TRUNCATE TABLE saved_links, users_follows, links, users CASCADE").Error; err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}

	return database
}

// seedRankingFixture writes three users, three links and the save events the
// ranking tests read. Within scope {1, 2}: link 10 last saved at t3 (tied
// with link 12), link 11 at t2; user 3's later save of link 11 is outside
// the scope.
func seedRankingFixture(t *testing.T, database *DB, base time.Time) {
	t.Helper()
	ctx := context.Background()

	repo := NewRepository(database.DB)
	users := NewUserRepository(repo)
	links := NewLinkRepository(repo)
	saves := NewSavedLinkRepository(repo)

	for i, handle := range []string{"ada", "alan", "grace"} {
		u := &models.User{
			ID:         int64(i + 1),
			FirstName:  handle,
			LastName:   "tester",
			Handle:     handle,
			LastOnline: base,
		}
		if err := users.Upsert(ctx, u); err != nil {
			t.Fatalf("failed to seed user %s: %v", handle, err)
		}
	}

	for id, title := range map[int64]string{
		10: "Quantum computing survey",
		11: "Gardening notes",
		12: "Compilers from scratch",
	} {
		l := &models.Link{
			ID:        id,
			URL:       "https://example.com",
			Title:     title,
			Snippet:   "",
			CreatedBy: 1,
		}
		if err := links.Upsert(ctx, l); err != nil {
			t.Fatalf("failed to seed link %d: %v", id, err)
		}
	}

	t1, t2, t3, t4 := base, base.Add(time.Hour), base.Add(2*time.Hour), base.Add(3*time.Hour)
	err := saves.UpsertAll(ctx, []models.SavedLink{
		{UserID: 1, LinkID: 10, SavedAt: t1},
		{UserID: 2, LinkID: 10, SavedAt: t3},
		{UserID: 1, LinkID: 11, SavedAt: t2},
		{UserID: 3, LinkID: 11, SavedAt: t4},
		{UserID: 2, LinkID: 12, SavedAt: t3},
	})
	if err != nil {
		t.Fatalf("failed to seed saves: %v", err)
	}
}

func rankedIDs(links []RankedLink) []int64 {
	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestScopedRecentRanking(t *testing.T) {
	database := testDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRankingFixture(t, database, base)

	links := NewLinkRepository(NewRepository(database.DB))

	got, err := links.ScopedRecent(context.Background(), []int64{1, 2}, 10, "")
	if err != nil {
		t.Fatalf("ScopedRecent() error: %v", err)
	}

	// Link 10 and 12 tie at t3 within scope and break by id ascending; link
	// 11's in-scope latest is t2, its t4 save belongs to a user outside the
	// scope.
	want := []int64{10, 12, 11}
	ids := rankedIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("ScopedRecent() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ScopedRecent() = %v, want %v", ids, want)
		}
	}

	t2, t3 := base.Add(time.Hour), base.Add(2*time.Hour)
	if !got[0].LastSavedAt.Equal(t3) {
		t.Errorf("link 10 last_saved_at = %v, want %v", got[0].LastSavedAt, t3)
	}
	if !got[2].LastSavedAt.Equal(t2) {
		t.Errorf("link 11 last_saved_at = %v, want %v (the out-of-scope save must not count)", got[2].LastSavedAt, t2)
	}
}

func TestGlobalRecentRanking(t *testing.T) {
	database := testDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRankingFixture(t, database, base)

	links := NewLinkRepository(NewRepository(database.DB))

	got, err := links.GlobalRecent(context.Background(), 10, "")
	if err != nil {
		t.Fatalf("GlobalRecent() error: %v", err)
	}

	// With every saver counted, link 11's t4 save ranks it first
	want := []int64{11, 10, 12}
	ids := rankedIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("GlobalRecent() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("GlobalRecent() = %v, want %v", ids, want)
		}
	}
}

func TestScopedRecentSearch(t *testing.T) {
	database := testDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRankingFixture(t, database, base)

	links := NewLinkRepository(NewRepository(database.DB))

	got, err := links.ScopedRecent(context.Background(), []int64{1, 2}, 10, "quantum")
	if err != nil {
		t.Fatalf("ScopedRecent() error: %v", err)
	}

	if len(got) != 1 || got[0].ID != 10 {
		t.Errorf("search should match only link 10, got %v", rankedIDs(got))
	}
}
