package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curius/feedsync/internal/cache"
	"github.com/curius/feedsync/internal/db"
	"github.com/curius/feedsync/internal/feed"
	"github.com/curius/feedsync/internal/graph"
	"github.com/curius/feedsync/internal/sync"
	"github.com/curius/feedsync/pkg/config"
	"github.com/curius/feedsync/pkg/logging"
)

// Router sets up API routes
type Router struct {
	users      *db.UserRepository
	follows    *db.FollowRepository
	resolver   *graph.Resolver
	assembler  *feed.Assembler
	reconciler *sync.Reconciler
	cache      *cache.Cache
	feedTTL    time.Duration
	cronSecret string
	logger     *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, reconciler *sync.Reconciler, cfg *config.SyncConfig) *Router {
	repo := db.NewRepository(database.DB)
	users := db.NewUserRepository(repo)
	follows := db.NewFollowRepository(repo)
	links := db.NewLinkRepository(repo)
	saves := db.NewSavedLinkRepository(repo)

	return &Router{
		users:      users,
		follows:    follows,
		resolver:   graph.NewResolver(follows),
		assembler:  feed.NewAssembler(links, saves, users),
		reconciler: reconciler,
		cache:      redisCache,
		feedTTL:    cfg.FeedTTL,
		cronSecret: cfg.CronSecret,
		logger:     logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	api := engine.Group("/api")
	api.GET("/feed", r.GetFeed)
	api.GET("/follow-list", r.GetFollowList)
	api.GET("/follow-graph", r.GetFollowGraph)
	api.GET("/users", r.ListUsers)
	api.GET("/sync", r.TriggerSync)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "feedsync-api",
	})
}
