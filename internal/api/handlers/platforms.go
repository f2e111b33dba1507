package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/registry"
	"github.com/your-org/streamhub/internal/storage"
	"github.com/your-org/streamhub/pkg/dto"
)

type PlatformHandler struct {
	db       *storage.PostgresStore
	registry *registry.Registry
}

func NewPlatformHandler(db *storage.PostgresStore, reg *registry.Registry) *PlatformHandler {
	return &PlatformHandler{db: db, registry: reg}
}

func (h *PlatformHandler) Create(c *gin.Context) {
	var req dto.CreatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.Platform{
		Name:      req.Name,
		Kind:      models.PlatformKind(req.Kind),
		RTMPURL:   req.RTMPURL,
		StreamKey: req.StreamKey,
	}
	if err := h.db.CreatePlatform(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *PlatformHandler) List(c *gin.Context) {
	platforms, err := h.db.ListPlatforms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"platforms": platforms, "total": len(platforms)})
}

func (h *PlatformHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid platform id"})
		return
	}

	p, err := h.db.GetPlatform(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "platform not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PlatformHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid platform id"})
		return
	}

	var req dto.UpdatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.db.GetPlatform(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "platform not found"})
		return
	}

	if err := h.db.UpdatePlatform(c.Request.Context(), id, req.Name, models.PlatformKind(req.Kind), req.RTMPURL, req.StreamKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *PlatformHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid platform id"})
		return
	}

	p, err := h.db.GetPlatform(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "platform not found"})
		return
	}

	// Force-stop any stream publishing to this platform first.
	stopped := h.registry.StopWhere(c.Request.Context(), func(_, platformID uuid.UUID) bool {
		return platformID == id
	})

	if err := h.db.DeletePlatform(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "stopped_streams": len(stopped)})
}
