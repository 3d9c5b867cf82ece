package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService    *service.OrderService
	checkoutService *service.CheckoutService
	webhookService  *service.WebhookService
	storage         UploadStorage
	cache           CheckoutCache
	webhookToken    string
}

// UploadStorage persists prescription uploads, implemented by
// *storage.LocalStorage.
type UploadStorage interface {
	Save(ctx context.Context, orderID, filename string, r io.Reader) (string, error)
}

// CheckoutCache caches the public checkout view, implemented by
// *redisclient.Client. A nil cache disables caching.
type CheckoutCache interface {
	CacheCheckoutView(ctx context.Context, orderID string, payload []byte, ttl time.Duration) error
	GetCheckoutView(ctx context.Context, orderID string) ([]byte, error)
	InvalidateCheckoutView(ctx context.Context, orderID string) error
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	storage UploadStorage,
	cache CheckoutCache,
	webhookToken string,
) *Handler {
	return &Handler{
		orderService:    orderService,
		checkoutService: checkoutService,
		webhookService:  webhookService,
		storage:         storage,
		cache:           cache,
		webhookToken:    webhookToken,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
	}

	checkout := router.Group("/checkout")
	{
		checkout.GET("/:id", h.getCheckout)
		checkout.POST("/:id", h.saveCheckout)
		checkout.POST("/:id/payment", h.directPayment)
		checkout.POST("/:id/upload", h.uploadAttachment)
		checkout.DELETE("/:id/address/:addressId", h.deleteAddress)
	}

	router.POST("/webhooks/asaas", h.asaasWebhook)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles attendant-side order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to create order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	view, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// cancelOrder cancels a pending order
func (h *Handler) cancelOrder(c *gin.Context) {
	if err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{
			"error":   "Failed to cancel order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// statusForError maps service errors onto HTTP statuses
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrOrderNotPending):
		return http.StatusConflict
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "invalid"),
		strings.Contains(err.Error(), "must have"),
		strings.Contains(err.Error(), "unknown"),
		strings.Contains(err.Error(), "required"),
		strings.Contains(err.Error(), "does not belong"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
