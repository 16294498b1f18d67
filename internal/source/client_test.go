package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curius/feedsync/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(&config.SourceConfig{URL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client, srv
}

func TestListAllUsers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/all" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"users": [
			{"id": 1, "firstName": "Ada", "lastName": "Lovelace", "userLink": "ada", "lastOnline": "2024-01-15T10:30:00.000Z"},
			{"id": 2, "firstName": "Alan", "lastName": "Turing", "userLink": "alan", "lastOnline": "2024-02-01T08:00:00.000Z"}
		]}`))
	})

	users, err := client.ListAllUsers(context.Background())
	if err != nil {
		t.Fatalf("ListAllUsers() error: %v", err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Handle != "ada" {
		t.Errorf("expected handle 'ada', got %q", users[0].Handle)
	}
	if users[1].LastOnline.IsZero() {
		t.Error("expected lastOnline to be parsed")
	}
}

func TestGetUserProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/ada" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user": {
			"id": 1, "firstName": "Ada", "lastName": "Lovelace", "userLink": "ada",
			"lastOnline": "2024-01-15T10:30:00.000Z", "numFollowers": 12, "views": 340,
			"school": "Analytical Engine Institute",
			"followingUsers": [
				{"id": 2, "firstName": "Alan", "lastName": "Turing", "userLink": "alan", "lastOnline": "2024-02-01T08:00:00.000Z"}
			]
		}}`))
	})

	profile, err := client.GetUserProfile(context.Background(), "ada")
	if err != nil {
		t.Fatalf("GetUserProfile() error: %v", err)
	}

	if profile.NumFollowers != 12 {
		t.Errorf("expected 12 followers, got %d", profile.NumFollowers)
	}
	if profile.School == nil || *profile.School != "Analytical Engine Institute" {
		t.Errorf("expected school to be parsed, got %v", profile.School)
	}
	if len(profile.FollowingUsers) != 1 || profile.FollowingUsers[0].ID != 2 {
		t.Errorf("expected one followee with ID 2, got %v", profile.FollowingUsers)
	}
}

func TestGetUserProfileMissingPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	if _, err := client.GetUserProfile(context.Background(), "ada"); err == nil {
		t.Error("expected error for missing user payload")
	}
}

func TestGetUserSavedLinks(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/1/links" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "0" {
			t.Errorf("expected page=0, got %s", r.URL.Query().Get("page"))
		}
		w.Write([]byte(`{"userSaved": [
			{"id": 100, "link": "https://example.com", "title": "Example",
			 "snippet": "an example", "createdDate": "2024-03-01T12:00:00.000Z",
			 "modifiedDate": "2024-03-02T12:00:00.000Z",
			 "metadata": {"full_text": "body text", "page_type": "article"}}
		]}`))
	})

	links, err := client.GetUserSavedLinks(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetUserSavedLinks() error: %v", err)
	}

	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].ID != 100 || links[0].Title != "Example" {
		t.Errorf("unexpected link: %+v", links[0])
	}
	if len(links[0].Metadata) == 0 {
		t.Error("expected raw metadata to be retained")
	}
}

func TestGetErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	if _, err := client.ListAllUsers(context.Background()); err == nil {
		t.Error("expected error for non-200 status")
	}
}
