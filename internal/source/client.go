package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/curius/feedsync/pkg/config"
	"github.com/curius/feedsync/pkg/logging"
	"github.com/curius/feedsync/pkg/telemetry"
)

// Client is a typed client for the upstream Curius API, the source of truth
// for users, follow edges and saved links.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a new source API client
func New(cfg *config.SourceConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "source-client"))

	client := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	logger.Info("Source client initialized", zap.String("url", cfg.URL))

	return client, nil
}

// ListAllUsers fetches the complete current user list
func (c *Client) ListAllUsers(ctx context.Context) ([]UserSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "source.list_all_users")
	defer span.End()

	var resp allUsersResponse
	if err := c.get(ctx, "/users/all", &resp); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return resp.Users, nil
}

// GetUserProfile fetches a user's full profile, including their following list
func (c *Client) GetUserProfile(ctx context.Context, handle string) (*UserProfile, error) {
	ctx, span := telemetry.StartSpan(ctx, "source.get_user_profile")
	defer span.End()

	if handle == "" {
		return nil, fmt.Errorf("handle is required")
	}

	var resp userResponse
	if err := c.get(ctx, "/users/"+url.PathEscape(handle), &resp); err != nil {
		return nil, fmt.Errorf("failed to get profile for %s: %w", handle, err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("profile response for %s missing user payload", handle)
	}

	return resp.User, nil
}

// GetUserSavedLinks fetches one page of a user's saved links
func (c *Client) GetUserSavedLinks(ctx context.Context, userID int64, page int) ([]Content, error) {
	ctx, span := telemetry.StartSpan(ctx, "source.get_user_saved_links")
	defer span.End()

	path := fmt.Sprintf("/users/%d/links?page=%d", userID, page)

	var resp linksResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to get saved links for user %d: %w", userID, err)
	}

	return resp.UserSaved, nil
}

// get performs a GET request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for context in the error message
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
