package api

import (
	"encoding/json"
	"net/http"
	"time"

	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	checkoutCacheTTL = 30 * time.Second

	maxUploadBytes = 10 << 20 // 10 MiB
)

// getCheckout serves the public checkout page state, cached briefly in redis
// since the page polls it.
func (h *Handler) getCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	if h.cache != nil {
		if payload, err := h.cache.GetCheckoutView(ctx, orderID); err == nil && payload != nil {
			c.Data(http.StatusOK, "application/json", payload)
			return
		}
	}

	view, err := h.checkoutService.GetCheckoutView(ctx, orderID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Checkout not found",
			"details": err.Error(),
		})
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(view); err == nil {
			if err := h.cache.CacheCheckoutView(ctx, orderID, payload, checkoutCacheTTL); err != nil {
				util.GetLogger().Warn("failed to cache checkout view",
					zap.String("order_id", orderID),
					zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, view)
}

// saveCheckout applies a partial or final checkout submission
func (h *Handler) saveCheckout(c *gin.Context) {
	var req service.CheckoutSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	orderID := c.Param("id")
	resp, err := h.checkoutService.Save(c.Request.Context(), orderID, &req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to save checkout",
			"details": err.Error(),
		})
		return
	}

	h.invalidateCheckout(c, orderID)
	c.JSON(http.StatusOK, resp)
}

// directPayment charges the order synchronously. Gateway declines come back
// as 200 with success=false; only infrastructure failures are 5xx.
func (h *Handler) directPayment(c *gin.Context) {
	var req service.DirectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	orderID := c.Param("id")
	resp, err := h.checkoutService.DirectPayment(c.Request.Context(), orderID, &req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to process payment",
			"details": err.Error(),
		})
		return
	}

	h.invalidateCheckout(c, orderID)
	c.JSON(http.StatusOK, resp)
}

// uploadAttachment stores a prescription image against the order
func (h *Handler) uploadAttachment(c *gin.Context) {
	orderID := c.Param("id")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid upload",
			"details": err.Error(),
		})
		return
	}
	defer file.Close()

	url, err := h.storage.Save(c.Request.Context(), orderID, header.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to store file",
			"details": err.Error(),
		})
		return
	}

	if err := h.checkoutService.SetAttachment(c.Request.Context(), orderID, url); err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to attach file",
			"details": err.Error(),
		})
		return
	}

	h.invalidateCheckout(c, orderID)
	c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
}

// deleteAddress removes a saved customer address from the checkout
func (h *Handler) deleteAddress(c *gin.Context) {
	orderID := c.Param("id")

	if err := h.checkoutService.DeleteAddress(c.Request.Context(), orderID, c.Param("addressId")); err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to delete address",
			"details": err.Error(),
		})
		return
	}

	h.invalidateCheckout(c, orderID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) invalidateCheckout(c *gin.Context, orderID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateCheckoutView(c.Request.Context(), orderID); err != nil {
		util.GetLogger().Warn("failed to invalidate checkout cache",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
