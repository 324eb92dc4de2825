package handlers

import (
	"context"
	"net/http"

	"shopmirror/internal/catalog"
	"shopmirror/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SyncRequester interface {
	RequestSync(ctx context.Context, kind catalog.Kind) error
}

type SyncHandler struct {
	syncer SyncRequester
	logger *logger.Logger
}

func NewSyncHandler(syncer SyncRequester, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: logger.Named("sync-api")}
}

// Trigger queues a full sync. The worker runs it; a second trigger while the
// first is still queued answers 409.
func (h *SyncHandler) Trigger(c *gin.Context) {
	kind, err := catalog.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.syncer.RequestSync(c.Request.Context(), kind); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("full sync requested", zap.String("kind", string(kind)))
	c.JSON(http.StatusAccepted, gin.H{"message": "Sync queued", "kind": kind})
}
