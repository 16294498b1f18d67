package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curius/feedsync/internal/models"
	"github.com/curius/feedsync/internal/source"
	"github.com/curius/feedsync/pkg/logging"
	"github.com/curius/feedsync/pkg/telemetry"
)

// DefaultMaxWorkers bounds the per-user fan-out against the upstream API and
// the local connection pool.
const DefaultMaxWorkers = 5

// Source is the slice of the upstream API the reconciler consumes
type Source interface {
	ListAllUsers(ctx context.Context) ([]source.UserSummary, error)
	GetUserProfile(ctx context.Context, handle string) (*source.UserProfile, error)
	GetUserSavedLinks(ctx context.Context, userID int64, page int) ([]source.Content, error)
}

// UserStore persists user rows
type UserStore interface {
	HighWaterMarks(ctx context.Context) (time.Time, int64, error)
	Upsert(ctx context.Context, user *models.User) error
	UpsertPlaceholders(ctx context.Context, users []*models.User) error
}

// FollowStore persists follow edges
type FollowStore interface {
	UpsertAll(ctx context.Context, follows []models.Follow) error
}

// LinkStore persists link rows
type LinkStore interface {
	Upsert(ctx context.Context, link *models.Link) error
}

// SavedLinkStore persists save events
type SavedLinkStore interface {
	UpsertAll(ctx context.Context, saves []models.SavedLink) error
}

// UserError records a single user's sync failure
type UserError struct {
	User  string `json:"user"`
	Error string `json:"error"`
}

// Report summarizes one reconciliation run. Processed counts every user
// attempted, including the ones that failed.
type Report struct {
	Processed    int         `json:"processed"`
	Errors       int         `json:"errors"`
	ErrorDetails []UserError `json:"errorDetails"`
}

// Reconciler brings the local store up to date with the upstream source.
// Every write is an idempotent upsert, so a rerun after partial failure
// completes the missing work without duplicating rows.
type Reconciler struct {
	source     Source
	users      UserStore
	follows    FollowStore
	links      LinkStore
	saves      SavedLinkStore
	maxWorkers int
	logger     *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(src Source, users UserStore, follows FollowStore, links LinkStore, saves SavedLinkStore, maxWorkers int) *Reconciler {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Reconciler{
		source:     src,
		users:      users,
		follows:    follows,
		links:      links,
		saves:      saves,
		maxWorkers: maxWorkers,
		logger:     logging.GetLogger().With(zap.String("component", "reconciler")),
	}
}

type userResult struct {
	identity string
	err      error
}

// Reconcile performs one incremental sync pass. Per-user failures are
// collected into the report; only infrastructure failures (store or source
// unreachable) return an error.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.reconcile")
	defer span.End()

	maxLastOnline, maxUserID, err := r.users.HighWaterMarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read high-water marks: %w", err)
	}

	allUsers, err := r.source.ListAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user list: %w", err)
	}

	// New users and users active since the last sync
	var updateSet []source.UserSummary
	for _, u := range allUsers {
		if u.LastOnline.After(maxLastOnline) || u.ID > maxUserID {
			updateSet = append(updateSet, u)
		}
	}

	r.logger.Info("Computed update set",
		zap.Int("total_users", len(allUsers)),
		zap.Int("update_set", len(updateSet)),
		zap.Time("max_last_online", maxLastOnline),
		zap.Int64("max_user_id", maxUserID))

	if len(updateSet) == 0 {
		return &Report{ErrorDetails: []UserError{}}, nil
	}

	// Fan out per user with bounded concurrency. Workers report over the
	// channel instead of sharing counters; the buffer means no worker ever
	// blocks on a slow collector.
	results := make(chan userResult, len(updateSet))

	var g errgroup.Group
	g.SetLimit(r.maxWorkers)

	launched := 0
	for _, u := range updateSet {
		// Stop launching new units on cancellation; in-flight units finish
		// so no user is left half-written within a single unit.
		if ctx.Err() != nil {
			r.logger.Warn("Reconciliation cancelled before all users launched",
				zap.Int("launched", launched),
				zap.Int("remaining", len(updateSet)-launched))
			break
		}

		u := u
		launched++
		g.Go(func() error {
			results <- userResult{
				identity: identity(u),
				err:      r.syncUser(ctx, u),
			}
			return nil
		})
	}

	// Workers never return errors; failures travel in the results
	_ = g.Wait()
	close(results)

	report := &Report{ErrorDetails: []UserError{}}
	for res := range results {
		report.Processed++
		if res.err != nil {
			report.Errors++
			report.ErrorDetails = append(report.ErrorDetails, UserError{
				User:  res.identity,
				Error: res.err.Error(),
			})
			r.logger.Warn("User sync failed",
				zap.String("user", res.identity),
				zap.Error(res.err))
		}
	}

	r.logger.Info("Reconciliation complete",
		zap.Int("processed", report.Processed),
		zap.Int("errors", report.Errors))

	return report, nil
}

// syncUser pulls one user's profile and saved links and upserts everything.
// Writes are ordered so every foreign key target exists before its referrer.
func (r *Reconciler) syncUser(ctx context.Context, u source.UserSummary) error {
	profile, err := r.source.GetUserProfile(ctx, u.Handle)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	contents, err := r.source.GetUserSavedLinks(ctx, u.ID, 0)
	if err != nil {
		return fmt.Errorf("fetch saved links: %w", err)
	}

	user, err := UserFromProfile(profile)
	if err != nil {
		return fmt.Errorf("convert profile: %w", err)
	}
	if err := r.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if len(profile.FollowingUsers) > 0 {
		placeholders := make([]*models.User, 0, len(profile.FollowingUsers))
		for _, f := range profile.FollowingUsers {
			placeholder, err := PlaceholderFromSummary(f)
			if err != nil {
				return fmt.Errorf("convert followee: %w", err)
			}
			placeholders = append(placeholders, placeholder)
		}

		if err := r.users.UpsertPlaceholders(ctx, placeholders); err != nil {
			return fmt.Errorf("upsert placeholder users: %w", err)
		}
		if err := r.follows.UpsertAll(ctx, FollowsFromProfile(profile)); err != nil {
			return fmt.Errorf("upsert follows: %w", err)
		}
	}

	for _, c := range contents {
		link, err := LinkFromContent(c, u.ID)
		if err != nil {
			return fmt.Errorf("convert link: %w", err)
		}
		if err := r.links.Upsert(ctx, link); err != nil {
			return fmt.Errorf("upsert link %d: %w", link.ID, err)
		}

		save, err := SavedLinkFromContent(c, u.ID)
		if err != nil {
			return fmt.Errorf("convert saved link: %w", err)
		}
		if err := r.saves.UpsertAll(ctx, []models.SavedLink{save}); err != nil {
			return fmt.Errorf("upsert saved link %d: %w", save.LinkID, err)
		}
	}

	r.logger.Debug("Synced user",
		zap.Int64("user_id", u.ID),
		zap.String("handle", u.Handle),
		zap.Int("following", len(profile.FollowingUsers)),
		zap.Int("links", len(contents)))

	return nil
}

func identity(u source.UserSummary) string {
	return fmt.Sprintf("%s %s (%s, id: %d)", u.FirstName, u.LastName, u.Handle, u.ID)
}
