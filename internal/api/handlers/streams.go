package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/observability"
	"github.com/your-org/streamhub/internal/registry"
	"github.com/your-org/streamhub/internal/storage"
	"github.com/your-org/streamhub/pkg/dto"
)

type StreamHandler struct {
	db       *storage.PostgresStore
	registry *registry.Registry
	loops    *loop.Manager
}

func NewStreamHandler(db *storage.PostgresStore, reg *registry.Registry, loops *loop.Manager) *StreamHandler {
	return &StreamHandler{db: db, registry: reg, loops: loops}
}

func (h *StreamHandler) Start(c *gin.Context) {
	var req dto.StartStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var loopCfg *models.LoopConfig
	if req.LoopConfigID != nil {
		cfg, err := h.loops.GetConfig(c.Request.Context(), *req.LoopConfigID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, loop.ErrNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		loopCfg = cfg
	}

	results, err := h.registry.Start(c.Request.Context(), req.VideoID, req.PlatformIDs, loopCfg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) || errors.Is(err, loop.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	started := 0
	for _, res := range results {
		if res.Success {
			started++
		}
	}
	observability.StreamsStarted.WithLabelValues("manual").Add(float64(started))

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *StreamHandler) Stop(c *gin.Context) {
	var req dto.StopStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stopped := h.registry.Stop(c.Request.Context(), req.VideoID, req.PlatformID)
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func (h *StreamHandler) Active(c *gin.Context) {
	streams := h.registry.ActiveStreams()
	c.JSON(http.StatusOK, gin.H{"streams": streams, "total": len(streams)})
}

func (h *StreamHandler) History(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.db.ListStreamHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "total": len(history)})
}
