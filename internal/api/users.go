package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type usersResponse struct {
	Users []userJSON `json:"users"`
}

// ListUsers returns every known user, placeholders included, ordered by ID.
// Backs client-side search over the user directory.
func (r *Router) ListUsers(c *gin.Context) {
	users, err := r.users.List(c.Request.Context())
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		respondError(c, NewError(http.StatusInternalServerError, "failed to list users"))
		return
	}

	payload := make([]userJSON, 0, len(users))
	for _, u := range users {
		payload = append(payload, userPayload(u))
	}

	c.JSON(http.StatusOK, usersResponse{Users: payload})
}
