package api

import (
	"encoding/json"
	"io"
	"net/http"

	"checkout-service/internal/gateway/asaas"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBytes = 1 << 20

// asaasWebhook receives provider payment notifications. Any non-2xx answer
// makes the provider redeliver, so only genuine processing failures return
// errors; duplicates and unknown events are acknowledged.
func (h *Handler) asaasWebhook(c *gin.Context) {
	if h.webhookToken != "" && c.GetHeader("asaas-access-token") != h.webhookToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook token"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	var payload asaas.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}
	if payload.Event == "" || payload.Payment.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing event or payment id"})
		return
	}

	if err := h.webhookService.HandleEvent(c.Request.Context(), &payload, raw); err != nil {
		util.GetLogger().Error("webhook processing failed",
			zap.String("event", payload.Event),
			zap.String("payment_id", payload.Payment.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process webhook",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
