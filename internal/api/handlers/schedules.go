package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/streamhub/internal/models"
	"github.com/your-org/streamhub/internal/scheduler"
	"github.com/your-org/streamhub/internal/storage"
	"github.com/your-org/streamhub/pkg/dto"
)

type ScheduleHandler struct {
	db     *storage.PostgresStore
	engine *scheduler.Engine
}

func NewScheduleHandler(db *storage.PostgresStore, engine *scheduler.Engine) *ScheduleHandler {
	return &ScheduleHandler{db: db, engine: engine}
}

func scheduleErrStatus(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	sc := &models.Schedule{
		VideoID:      req.VideoID,
		PlatformIDs:  req.PlatformIDs,
		Days:         req.Days,
		TimeOfDay:    req.TimeOfDay,
		Active:       active,
		LoopConfigID: req.LoopConfigID,
	}
	if err := h.engine.Create(c.Request.Context(), sc); err != nil {
		c.JSON(scheduleErrStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sc)
}

func (h *ScheduleHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	schedules, err := h.db.ListSchedules(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "total": len(schedules)})
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	sc, err := h.db.GetSchedule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.engine.Update(c.Request.Context(), id, req.PlatformIDs, req.Days, req.TimeOfDay, req.Active, req.LoopConfigID)
	if err != nil {
		c.JSON(scheduleErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	if err := h.engine.Delete(c.Request.Context(), id); err != nil {
		c.JSON(scheduleErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ScheduleHandler) Logs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.engine.Logs(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": len(logs)})
}
