package models

// Follow represents a directed follow edge. Edges only ever arrive from the
// upstream API and are never deleted or mutated once recorded.
type Follow struct {
	FollowerID  int64 `gorm:"primaryKey;index:follows_follower_idx;column:follower_id"`
	FollowingID int64 `gorm:"primaryKey;index:follows_following_idx;column:following_id"`

	// Relationships
	Follower  *User `gorm:"foreignKey:FollowerID;references:ID"`
	Following *User `gorm:"foreignKey:FollowingID;references:ID"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "users_follows"
}
