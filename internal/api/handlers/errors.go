package handlers

import (
	"errors"
	"net/http"

	"shopmirror/internal/logger"
	apperrors "shopmirror/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps the error taxonomy onto a status code and JSON body.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var (
		validation *apperrors.ErrValidation
		notFound   *apperrors.ErrNotFound
		rejected   *apperrors.ErrCheckoutRejected
		busy       *apperrors.ErrConcurrentSync
		remote     *apperrors.ErrRemoteUnavailable
	)

	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": validation.Error()}
		if len(validation.Fields) > 0 {
			body["fields"] = validation.Fields
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.Is(err, apperrors.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rejected.Error()})
	case errors.As(err, &busy):
		c.JSON(http.StatusConflict, gin.H{"error": busy.Error()})
	case errors.As(err, &remote):
		log.Warn("remote unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Shopify is unavailable, try again later"})
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
	_ = c.Error(err)
}
