package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/curius/feedsync/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByHandle retrieves a user by handle
func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves multiple users by IDs
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// HighWaterMarks returns the latest last_online timestamp and the highest user
// ID currently stored. Both are zero-valued on an empty table.
func (r *UserRepository) HighWaterMarks(ctx context.Context) (time.Time, int64, error) {
	var row struct {
		MaxOnline sql.NullTime
		MaxID     sql.NullInt64
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("MAX(last_online) AS max_online, MAX(id) AS max_id").
		Scan(&row).Error
	if err != nil {
		return time.Time{}, 0, err
	}
	return row.MaxOnline.Time, row.MaxID.Int64, nil
}

// Upsert inserts a fully-hydrated user or updates it in place on ID conflict.
// A placeholder row hydrates through this path.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "handle", "last_online",
			"num_followers", "profile_metadata",
		}),
	}).Create(user).Error
}

// UpsertPlaceholders inserts placeholder rows for users referenced by follow
// edges. Existing rows, hydrated or not, are never overwritten.
func (r *UserRepository) UpsertPlaceholders(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(users).Error
}

// FollowRepository provides follow-edge database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// FollowingIDs returns the IDs followed by any of the given followers, in one
// batched query. This is the single query pattern the BFS expansion relies on.
func (r *FollowRepository) FollowingIDs(ctx context.Context, followerIDs []int64) ([]int64, error) {
	if len(followerIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id IN ?", followerIDs).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FollowsFrom returns all follow edges originating from the given followers
func (r *FollowRepository) FollowsFrom(ctx context.Context, followerIDs []int64) ([]models.Follow, error) {
	if len(followerIDs) == 0 {
		return nil, nil
	}
	var follows []models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id IN ?", followerIDs).
		Find(&follows).Error
	if err != nil {
		return nil, err
	}
	return follows, nil
}

// UpsertAll inserts follow edges, ignoring pairs already recorded. Edges are
// immutable once written.
func (r *FollowRepository) UpsertAll(ctx context.Context, follows []models.Follow) error {
	if len(follows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&follows).Error
}

// RankedLink is a link row joined with its ranking timestamp: the most recent
// save event among the savers the query was restricted to.
type RankedLink struct {
	ID          int64          `gorm:"column:id"`
	URL         string         `gorm:"column:link"`
	Title       string         `gorm:"column:title"`
	Snippet     string         `gorm:"column:snippet"`
	Fulltext    sql.NullString `gorm:"column:fulltext"`
	CreatedBy   int64          `gorm:"column:created_by"`
	LastCrawled sql.NullTime   `gorm:"column:last_crawled"`
	Metadata    models.JSONB   `gorm:"column:metadata"`
	LastSavedAt time.Time      `gorm:"column:last_saved_at"`
}

// searchCondition ranks title above snippet above fulltext
const searchCondition = `(
	setweight(to_tsvector('english', l.title), 'A') ||
	setweight(to_tsvector('english', l.snippet), 'B') ||
	setweight(to_tsvector('english', coalesce(l.fulltext, '')), 'C')
) @@ websearch_to_tsquery('english', ?)`

// LinkRepository provides link-related database operations
type LinkRepository struct {
	*Repository
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(repo *Repository) *LinkRepository {
	return &LinkRepository{Repository: repo}
}

// Upsert inserts a link or refreshes its mutable fields on ID conflict.
// id and created_by are never touched on update.
func (r *LinkRepository) Upsert(ctx context.Context, link *models.Link) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "snippet", "fulltext", "last_crawled", "metadata",
		}),
	}).Create(link).Error
}

// ScopedRecent returns links saved by the given users, ranked by the latest
// save timestamp among those users. Ties break by link ID ascending.
func (r *LinkRepository) ScopedRecent(ctx context.Context, userIDs []int64, limit int, search string) ([]RankedLink, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).
		Table("saved_links AS sl").
		Select("l.id, l.link, l.title, l.snippet, l.fulltext, l.created_by, l.last_crawled, l.metadata, MAX(sl.saved_at) AS last_saved_at").
		Joins("JOIN links l ON l.id = sl.link_id").
		Where("sl.user_id IN ?", userIDs).
		Group("l.id")
	if search != "" {
		q = q.Where(searchCondition, search)
	}
	var links []RankedLink
	err := q.Order("last_saved_at DESC, l.id ASC").Limit(limit).Scan(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// GlobalRecent returns links ranked by their latest save timestamp among all
// savers, with no scope restriction.
func (r *LinkRepository) GlobalRecent(ctx context.Context, limit int, search string) ([]RankedLink, error) {
	q := r.db.WithContext(ctx).
		Table("saved_links AS sl").
		Select("l.id, l.link, l.title, l.snippet, l.fulltext, l.created_by, l.last_crawled, l.metadata, MAX(sl.saved_at) AS last_saved_at").
		Joins("JOIN links l ON l.id = sl.link_id").
		Group("l.id")
	if search != "" {
		q = q.Where(searchCondition, search)
	}
	var links []RankedLink
	err := q.Order("last_saved_at DESC, l.id ASC").Limit(limit).Scan(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// SavedLinkRepository provides saved-link database operations
type SavedLinkRepository struct {
	*Repository
}

// NewSavedLinkRepository creates a new saved-link repository
func NewSavedLinkRepository(repo *Repository) *SavedLinkRepository {
	return &SavedLinkRepository{Repository: repo}
}

// UpsertAll inserts saved-link rows, ignoring pairs already recorded
func (r *SavedLinkRepository) UpsertAll(ctx context.Context, saves []models.SavedLink) error {
	if len(saves) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&saves).Error
}

// SaversByLinkIDs returns all save records for the given links
func (r *SavedLinkRepository) SaversByLinkIDs(ctx context.Context, linkIDs []int64) ([]models.SavedLink, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}
	var saves []models.SavedLink
	err := r.db.WithContext(ctx).
		Where("link_id IN ?", linkIDs).
		Find(&saves).Error
	if err != nil {
		return nil, err
	}
	return saves, nil
}
