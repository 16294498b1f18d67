package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Link represents a saved web page. ID and CreatedBy are immutable once set;
// title, snippet, fulltext and metadata are refreshed on re-sync.
type Link struct {
	ID          int64          `gorm:"primaryKey;column:id"`
	URL         string         `gorm:"type:text;not null;column:link"`
	Title       string         `gorm:"type:text;not null;column:title"`
	Snippet     string         `gorm:"type:text;not null;column:snippet"`
	Fulltext    sql.NullString `gorm:"type:text;column:fulltext"`
	CreatedBy   int64          `gorm:"not null;index:links_created_by_idx;column:created_by"`
	LastCrawled sql.NullTime   `gorm:"column:last_crawled"`
	Metadata    JSONB          `gorm:"type:jsonb;column:metadata"`

	// Relationships
	Creator *User `gorm:"foreignKey:CreatedBy;references:ID"`
}

// TableName specifies the table name for Link
func (Link) TableName() string {
	return "links"
}

// SavedLink records that a user saved a link at a point in time. Multiple
// users may save the same link; the pair is unique.
type SavedLink struct {
	UserID  int64     `gorm:"primaryKey;index:saved_links_user_idx;column:user_id"`
	LinkID  int64     `gorm:"primaryKey;index:saved_links_link_idx;column:link_id"`
	SavedAt time.Time `gorm:"not null;column:saved_at"`
}

// TableName specifies the table name for SavedLink
func (SavedLink) TableName() string {
	return "saved_links"
}

// JSONB stores an opaque upstream blob verbatim. Link metadata has no fixed
// upstream schema, so it is passed through untyped; the reconciler only lifts
// the full_text key out before storage.
type JSONB json.RawMessage

// Value implements driver.Valuer for jsonb storage
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner for jsonb storage
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = JSONB(v)
		return nil
	default:
		return fmt.Errorf("unsupported type for link metadata: %T", value)
	}
}

// MarshalJSON returns the raw blob
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON stores the raw blob
func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}
