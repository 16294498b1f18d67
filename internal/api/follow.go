package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/curius/feedsync/internal/cache"
	"github.com/curius/feedsync/internal/graph"
	"github.com/curius/feedsync/internal/models"
)

type followListEntry struct {
	userJSON
	Order int `json:"order"`
}

type followListResponse struct {
	Users []followListEntry `json:"users"`
}

type graphEdge struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

type followGraphResponse struct {
	Nodes []followListEntry `json:"nodes"`
	Edges []graphEdge       `json:"edges"`
}

// GetFollowList returns everyone in a user's follow graph, the root first at
// order 0 and then each user with the order they were first reached at.
func (r *Router) GetFollowList(c *gin.Context) {
	handle, order, ok := r.graphParams(c)
	if !ok {
		return
	}

	cacheKey := cache.HashKey("follow-list", handle, strconv.Itoa(order))
	if cached, err := r.cache.Get(cacheKey); err == nil {
		c.Data(http.StatusOK, contentType(formatJSON), []byte(cached))
		return
	}

	g, ok := r.resolveGraph(c, handle, order)
	if !ok {
		return
	}

	users, err := r.graphUsers(c, g)
	if err != nil {
		respondError(c, NewError(http.StatusInternalServerError, "failed to load users"))
		return
	}

	entries := make([]followListEntry, 0, g.Size())
	for order := 0; order <= g.MaxOrder(); order++ {
		for _, id := range g.UsersAtOrder(order) {
			u := users[id]
			if u == nil {
				continue
			}
			entries = append(entries, followListEntry{userJSON: userPayload(u), Order: order})
		}
	}

	payload, err := json.Marshal(followListResponse{Users: entries})
	if err != nil {
		respondError(c, NewError(http.StatusInternalServerError, "failed to encode follow list"))
		return
	}

	if err := r.cache.Set(cacheKey, string(payload), r.feedTTL); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Failed to cache follow list", zap.Error(err))
	}

	c.Data(http.StatusOK, contentType(formatJSON), payload)
}

// GetFollowGraph returns the follow graph in a renderable node/edge form.
// Edges connect consecutive orders; edges between two order-1 users are also
// included so mutuals within the first hop render as a cluster. Presentation
// only; order assignment always comes from the breadth-first expansion.
func (r *Router) GetFollowGraph(c *gin.Context) {
	g, ok := r.resolveGraphParam(c)
	if !ok {
		return
	}

	users, err := r.graphUsers(c, g)
	if err != nil {
		respondError(c, NewError(http.StatusInternalServerError, "failed to load users"))
		return
	}

	nodes := make([]followListEntry, 0, g.Size())
	for order := 0; order <= g.MaxOrder(); order++ {
		for _, id := range g.UsersAtOrder(order) {
			u := users[id]
			if u == nil {
				continue
			}
			nodes = append(nodes, followListEntry{userJSON: userPayload(u), Order: order})
		}
	}

	follows, err := r.follows.FollowsFrom(c.Request.Context(), g.UserIDs(true))
	if err != nil {
		r.logger.Error("Failed to load follow edges", zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to load follow edges"))
		return
	}

	edges := make([]graphEdge, 0, len(follows))
	for _, f := range follows {
		sourceOrder, sourceIn := g.UserOrder(f.FollowerID)
		targetOrder, targetIn := g.UserOrder(f.FollowingID)
		if !sourceIn || !targetIn {
			continue
		}
		if targetOrder == sourceOrder+1 || (sourceOrder == 1 && targetOrder == 1) {
			edges = append(edges, graphEdge{Source: f.FollowerID, Target: f.FollowingID})
		}
	}

	c.JSON(http.StatusOK, followGraphResponse{Nodes: nodes, Edges: edges})
}

// graphParams parses user_handle and order, writing the error response
// itself when it returns false.
func (r *Router) graphParams(c *gin.Context) (string, int, bool) {
	handle := c.Query("user_handle")
	if handle == "" {
		respondError(c, NewError(http.StatusBadRequest, "user_handle is required"))
		return "", 0, false
	}

	order, ok := parseBoundedInt(c.DefaultQuery("order", "1"), 0, 2)
	if !ok {
		respondError(c, NewError(http.StatusBadRequest, "order must be an integer between 0 and 2"))
		return "", 0, false
	}

	return handle, order, true
}

// resolveGraphParam parses user_handle and order and resolves the follow
// graph, writing the error response itself when it returns false.
func (r *Router) resolveGraphParam(c *gin.Context) (*graph.FollowGraph, bool) {
	handle, order, ok := r.graphParams(c)
	if !ok {
		return nil, false
	}
	return r.resolveGraph(c, handle, order)
}

// resolveGraph looks the root user up and runs the breadth-first expansion
func (r *Router) resolveGraph(c *gin.Context, handle string, order int) (*graph.FollowGraph, bool) {
	user, err := r.users.GetByHandle(c.Request.Context(), handle)
	if err != nil {
		r.logger.Error("Failed to look up user", zap.String("handle", handle), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to look up user"))
		return nil, false
	}
	if user == nil {
		respondError(c, ErrUserNotFound)
		return nil, false
	}

	g, err := r.resolver.Resolve(c.Request.Context(), user.ID, order)
	if err != nil {
		r.logger.Error("Failed to resolve follow graph", zap.Int64("user_id", user.ID), zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to resolve follow graph"))
		return nil, false
	}
	return g, true
}

// graphUsers loads the user rows for every ID the graph reached
func (r *Router) graphUsers(c *gin.Context, g *graph.FollowGraph) (map[int64]*models.User, error) {
	users, err := r.users.GetByIDs(c.Request.Context(), g.UserIDs(true))
	if err != nil {
		r.logger.Error("Failed to load graph users", zap.Error(err))
		return nil, err
	}
	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
