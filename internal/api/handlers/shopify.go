package handlers

import (
	"context"
	"net/http"

	"shopmirror/internal/logger"
	"shopmirror/internal/models"
	"shopmirror/internal/worker/processors/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerHmac   = "X-Shopify-Hmac-Sha256"
	headerTopic  = "X-Shopify-Topic"
	headerDomain = "X-Shopify-Shop-Domain"
)

// Enqueuer accepts verified webhook bodies for the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload []byte) (*models.QueueItem, error)
}

type ShopifyHandler struct {
	validator *validation.Validator
	queue     Enqueuer
	logger    *logger.Logger
}

func NewShopifyHandler(validator *validation.Validator, queue Enqueuer, logger *logger.Logger) *ShopifyHandler {
	return &ShopifyHandler{
		validator: validator,
		queue:     queue,
		logger:    logger.Named("webhooks"),
	}
}

// Webhook verifies and queues a Shopify webhook. Processing happens in the
// worker; this handler only answers "Okay" once the item is durable.
func (h *ShopifyHandler) Webhook(c *gin.Context) {
	if !h.validator.Configured() {
		h.logger.Error("webhook received but SHOPIFY_WEBHOOK_SECRET is not set")
		c.String(http.StatusServiceUnavailable, "Webhooks not configured")
		return
	}

	topic := c.GetHeader(headerTopic)
	payload, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	if err := validation.CheckShape(topic, payload); err != nil {
		h.logger.Warn("rejected webhook", zap.String("topic", topic), zap.Error(err))
		c.String(http.StatusNotFound, "Not found")
		return
	}
	if err := h.validator.Verify(payload, c.GetHeader(headerHmac)); err != nil {
		h.logger.Warn("rejected webhook",
			zap.String("topic", topic),
			zap.String("shop", c.GetHeader(headerDomain)),
			zap.Error(err),
		)
		c.String(http.StatusNotFound, "Not found")
		return
	}

	item, err := h.queue.Enqueue(c.Request.Context(), topic, payload)
	if err != nil {
		h.logger.Error("failed to queue webhook", zap.String("topic", topic), zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to queue webhook")
		return
	}

	h.logger.Debug("webhook queued", zap.String("topic", topic), zap.Uint("item_id", item.ID))
	c.String(http.StatusOK, "Okay")
}
