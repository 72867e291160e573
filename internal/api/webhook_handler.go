package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glinrdock-paas/supervisor/internal/audit"
	"github.com/glinrdock-paas/supervisor/internal/metrics"
	"github.com/glinrdock-paas/supervisor/internal/registry"
	"github.com/glinrdock-paas/supervisor/internal/webhook"
)

// HandleWebhook verifies the inbound signature and triggers a redeploy,
// mirroring the platform's own GitHub webhook endpoint shape.
func (h *Handlers) HandleWebhook(c *gin.Context) {
	name := c.Param("app")
	signature := c.GetHeader("X-Hub-Signature-256")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.redeployer.Handle(name, body, signature); err != nil {
		metrics.RecordWebhook(false)
		h.recordAudit(c, name, audit.ActionWebhookDeploy, map[string]any{"error": err.Error()})

		switch {
		case errors.Is(err, registry.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		case errors.Is(err, webhook.ErrNotConfigured):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "webhook not configured"})
		case errors.Is(err, webhook.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		default:
			logError("webhook redeploy failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redeploy failed"})
		}
		return
	}

	metrics.RecordWebhook(true)
	h.recordAudit(c, name, audit.ActionWebhookDeploy, nil)
	c.JSON(http.StatusOK, gin.H{"message": "redeploy triggered"})
}
