package source

import (
	"encoding/json"
	"time"
)

// UserSummary is the compact user shape returned by the all-users listing and
// embedded in profile following lists.
type UserSummary struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Handle     string    `json:"userLink"`
	LastOnline time.Time `json:"lastOnline"`
}

// UserProfile is the full user payload, including the profile fields the API
// scatters at the top level and the user's following list.
type UserProfile struct {
	ID             int64         `json:"id"`
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	Handle         string        `json:"userLink"`
	LastOnline     time.Time     `json:"lastOnline"`
	NumFollowers   int           `json:"numFollowers"`
	Views          int           `json:"views"`
	Major          *string       `json:"major"`
	Interests      *string       `json:"interests"`
	Expertise      *string       `json:"expertise"`
	School         *string       `json:"school"`
	Github         *string       `json:"github"`
	Twitter        *string       `json:"twitter"`
	Website        *string       `json:"website"`
	FollowingUsers []UserSummary `json:"followingUsers"`
}

// Content is a saved link as returned by the per-user links endpoint. The
// date fields arrive as strings in upstream's own formats and are parsed at
// conversion time.
type Content struct {
	ID           int64           `json:"id"`
	Link         string          `json:"link"`
	Title        string          `json:"title"`
	Snippet      *string         `json:"snippet"`
	CreatedBy    *int64          `json:"createdBy"`
	CreatedDate  string          `json:"createdDate"`
	ModifiedDate string          `json:"modifiedDate"`
	LastCrawled  *string         `json:"lastCrawled"`
	Metadata     json.RawMessage `json:"metadata"`
}

type allUsersResponse struct {
	Users []UserSummary `json:"users"`
}

type userResponse struct {
	User *UserProfile `json:"user"`
}

type linksResponse struct {
	UserSaved []Content `json:"userSaved"`
}
