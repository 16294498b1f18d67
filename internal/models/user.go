package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// placeholderFollowers marks a user row created only to satisfy a follow edge
// or link reference before its own profile has been fetched. The sentinel
// never leaves this package; callers use IsPlaceholder and NewPlaceholder.
const placeholderFollowers = -1

// User represents a Curius user. IDs are assigned by the upstream API and
// stable across syncs.
type User struct {
	ID              int64            `gorm:"primaryKey;column:id"`
	FirstName       string           `gorm:"type:varchar(255);not null;column:first_name"`
	LastName        string           `gorm:"type:varchar(255);not null;column:last_name"`
	Handle          string           `gorm:"type:varchar(255);not null;uniqueIndex:users_handle_ux1;column:handle"`
	LastOnline      time.Time        `gorm:"not null;column:last_online"`
	NumFollowers    int              `gorm:"not null;column:num_followers"`
	ProfileMetadata *ProfileMetadata `gorm:"type:jsonb;column:profile_metadata"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsPlaceholder reports whether the row is awaiting profile hydration.
func (u *User) IsPlaceholder() bool {
	return u.NumFollowers == placeholderFollowers
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// NewPlaceholder creates a placeholder user row. Placeholder rows satisfy
// foreign keys until the user's own profile is synced; hydration is a one-way
// transition performed by the reconciler's upsert.
func NewPlaceholder(id int64, firstName, lastName, handle string, lastOnline time.Time) *User {
	return &User{
		ID:           id,
		FirstName:    firstName,
		LastName:     lastName,
		Handle:       handle,
		LastOnline:   lastOnline,
		NumFollowers: placeholderFollowers,
	}
}

// ProfileMetadata holds the optional profile fields the upstream API scatters
// across the user payload. Typed so schema drift fails at decode time.
type ProfileMetadata struct {
	Major     *string `json:"major,omitempty"`
	Interests *string `json:"interests,omitempty"`
	Expertise *string `json:"expertise,omitempty"`
	School    *string `json:"school,omitempty"`
	Github    *string `json:"github,omitempty"`
	Twitter   *string `json:"twitter,omitempty"`
	Website   *string `json:"website,omitempty"`
	Views     int     `json:"views,omitempty"`
}

// Value implements driver.Valuer for jsonb storage
func (m *ProfileMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb storage
func (m *ProfileMetadata) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for profile metadata: %T", value)
	}
}
