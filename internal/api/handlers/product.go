package handlers

import (
	"net/http"
	"strconv"

	"shopmirror/internal/logger"
	"shopmirror/internal/search"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	searcher *search.Builder
	logger   *logger.Logger
}

func NewProductHandler(searcher *search.Builder, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		searcher: searcher,
		logger:   logger.Named("products-api"),
	}
}

// List searches the mirrored catalog. Query parameters follow search.ParseFilter.
func (h *ProductHandler) List(c *gin.Context) {
	filter, err := search.ParseFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	page, err := h.searcher.Search(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page})
}

// Get returns one product by its Shopify id.
func (h *ProductHandler) Get(c *gin.Context) {
	remoteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	product, err := h.searcher.Product(c.Request.Context(), remoteID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}
