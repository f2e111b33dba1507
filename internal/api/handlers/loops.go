package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/pkg/dto"
)

type LoopHandler struct {
	loops *loop.Manager
}

func NewLoopHandler(loops *loop.Manager) *LoopHandler {
	return &LoopHandler{loops: loops}
}

func (h *LoopHandler) CreateConfig(c *gin.Context) {
	var req dto.CreateLoopConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := &models.LoopConfig{
		Name:          req.Name,
		Type:          models.LoopType(req.Type),
		VideoIDs:      req.VideoIDs,
		DurationHours: req.DurationHours,
		RepeatCount:   req.RepeatCount,
	}
	if err := h.loops.CreateConfig(c.Request.Context(), cfg); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, loop.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, loop.ErrNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cfg)
}

func (h *LoopHandler) GetConfig(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loop config id"})
		return
	}

	cfg, err := h.loops.GetConfig(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loop.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *LoopHandler) ActiveSessions(c *gin.Context) {
	sessions, err := h.loops.ActiveSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}
