package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TriggerSync runs one reconciliation pass on behalf of an external cron.
// Requires the configured bearer secret; a deployment without one cannot be
// triggered over HTTP at all.
func (r *Router) TriggerSync(c *gin.Context) {
	if r.cronSecret == "" || !validBearer(c.GetHeader("Authorization"), r.cronSecret) {
		respondError(c, ErrUnauthorized)
		return
	}

	report, err := r.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		r.logger.Error("Triggered sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func validBearer(header, secret string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	return ok && token == secret
}
