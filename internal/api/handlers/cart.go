package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"shopmirror/internal/api/middleware"
	"shopmirror/internal/cart"
	"shopmirror/internal/logger"
	"shopmirror/internal/worker/processors/export"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts     *cart.Service
	publisher export.Publisher
	logger    *logger.Logger
}

func NewCartHandler(carts *cart.Service, publisher export.Publisher, logger *logger.Logger) *CartHandler {
	return &CartHandler{
		carts:     carts,
		publisher: publisher,
		logger:    logger.Named("cart-api"),
	}
}

type addItemRequest struct {
	VariantID json.Number `json:"variant_id"`
	Quantity  json.Number `json:"quantity"`
	Mode      string      `json:"mode"`
}

func (h *CartHandler) Get(c *gin.Context) {
	snapshot, err := h.carts.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var request addItemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quantity := request.Quantity.String()
	if quantity == "" {
		quantity = "1"
	}
	variantID, qty, err := cart.ParseItem(request.VariantID.String(), quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	mode, err := cart.ParseMode(request.Mode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.carts.AddItem(c.Request.Context(), middleware.SessionID(c), variantID, qty, mode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.publish(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{"data": result.Cart, "show_cart": result.ShowCart})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	variantID, _, err := cart.ParseItem(c.Param("variant_id"), "0")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	result, err := h.carts.RemoveItem(c.Request.Context(), middleware.SessionID(c), variantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.publish(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{"data": result.Cart})
}

func (h *CartHandler) Reset(c *gin.Context) {
	result, err := h.carts.Reset(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.publish(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{"data": result.Cart})
}

// Checkout creates the remote checkout and returns the URL to redirect to.
func (h *CartHandler) Checkout(c *gin.Context) {
	result, err := h.carts.Checkout(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.publish(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{"data": result.Cart, "redirect": result.Cart.Checkout.URL})
}

func (h *CartHandler) StopCheckout(c *gin.Context) {
	result, err := h.carts.StopCheckout(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.publish(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{"data": result.Cart})
}

// publish announces the invalidated cart. A failure never fails the request.
func (h *CartHandler) publish(ctx context.Context, result *cart.Result) {
	if err := h.publisher.Publish(ctx, "cart", result.Changes); err != nil {
		h.logger.Warn("failed to publish cart change", zap.Error(err))
	}
}
