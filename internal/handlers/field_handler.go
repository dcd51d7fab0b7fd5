package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"yield-service/internal/draw"
	"yield-service/internal/models"
	"yield-service/internal/notification"
	"yield-service/internal/services"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
)

// SocketHub serves websocket clients of a workspace.
type SocketHub interface {
	HandleConnection(w http.ResponseWriter, r *http.Request, workspaceID string) (*notification.Connection, error)
}

type FieldHandler struct {
	registry     *services.WorkspaceRegistry
	hub          SocketHub
	auth         *Middleware
	highAccuracy bool
	logger       *slog.Logger
}

func NewFieldHandler(registry *services.WorkspaceRegistry, hub SocketHub, auth *Middleware, highAccuracy bool, logger *slog.Logger) *FieldHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldHandler{
		registry:     registry,
		hub:          hub,
		auth:         auth,
		highAccuracy: highAccuracy,
		logger:       logger.With("component", "field-handler"),
	}
}

func (h *FieldHandler) RegisterRoutes(router *gin.Engine) {
	fields := router.Group("/fields")
	fields.POST("", h.CreateWorkspace)
	fields.GET("/:id", h.GetWorkspace)
	fields.DELETE("/:id", h.DeleteWorkspace)
	fields.POST("/:id/reset", h.ResetWorkspace)
	fields.POST("/:id/events", h.PostSurfaceEvent)
	fields.POST("/:id/location/detect", h.DetectLocation)
	fields.POST("/:id/location/report", h.ReportPosition)
	fields.PUT("/:id/region", h.SelectRegion)
	fields.PUT("/:id/crop", h.UpdateCrop)
	fields.POST("/:id/predict", h.auth.Identify(), h.Predict)
	fields.GET("/:id/ws", h.ServeSocket)
}

type detectRequest struct {
	TimeoutMs    int   `json:"timeout_ms" binding:"omitempty,min=0"`
	HighAccuracy *bool `json:"high_accuracy"`
}

type regionRequest struct {
	Region string `json:"region" binding:"required"`
}

func (h *FieldHandler) workspace(c *gin.Context) (*services.FieldWorkspace, bool) {
	w, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return w, true
}

func (h *FieldHandler) CreateWorkspace(c *gin.Context) {
	w := h.registry.Create(c.ClientIP())
	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(w.Snapshot()))
}

func (h *FieldHandler) GetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(w.Snapshot()))
}

func (h *FieldHandler) DeleteWorkspace(c *gin.Context) {
	if !h.registry.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, utils.CreateErrorResponse(utils.CodeNotFound, "workspace not found"))
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"id": c.Param("id")}))
}

func (h *FieldHandler) ResetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	w.Reset()
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(w.Snapshot()))
}

// PostSurfaceEvent accepts a drawing event. Malformed polygons are ignored by the session,
// so the response always carries the resulting state.
func (h *FieldHandler) PostSurfaceEvent(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var event draw.SurfaceEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}
	w.Publish(event)
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(w.Snapshot()))
}

func (h *FieldHandler) DetectLocation(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req detectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
			return
		}
	}
	highAccuracy := h.highAccuracy
	if req.HighAccuracy != nil {
		highAccuracy = *req.HighAccuracy
	}

	resolved, err := w.DetectLocation(c.Request.Context(), time.Duration(req.TimeoutMs)*time.Millisecond, highAccuracy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(resolved))
}

func (h *FieldHandler) ReportPosition(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var report models.PositionReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}
	if !w.ReportPosition(report) {
		c.JSON(http.StatusConflict, utils.CreateErrorResponse(utils.CodeBadRequest, "no location request is pending"))
		return
	}
	c.JSON(http.StatusAccepted, utils.CreateSuccessResponse(gin.H{"accepted": true}))
}

func (h *FieldHandler) SelectRegion(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req regionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}
	if err := w.SelectRegion(req.Region); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(w.Snapshot().Context))
}

func (h *FieldHandler) UpdateCrop(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var crop models.CropContext
	if err := c.ShouldBindJSON(&crop); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}
	resolved := w.UpdateCrop(c.Request.Context(), crop)
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
		"crop":    w.Orchestrator.CropContext(),
		"context": resolved,
	}))
}

func (h *FieldHandler) Predict(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	result, err := w.Submit(c.Request.Context(), IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(result))
}

func (h *FieldHandler) ServeSocket(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	if _, err := h.hub.HandleConnection(c.Writer, c.Request, w.ID); err != nil {
		h.logger.Warn("websocket upgrade failed", "workspace_id", w.ID, "error", err)
	}
}

// SocketMessageRouter dispatches inbound websocket messages to their workspace. Map pages
// may send position reports and drawing events over the socket instead of HTTP.
func SocketMessageRouter(registry func() *services.WorkspaceRegistry, logger *slog.Logger) func(notification.Message) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ws-router")
	return func(msg notification.Message) {
		reg := registry()
		if reg == nil {
			return
		}
		w, err := reg.Get(msg.WorkspaceID)
		if err != nil {
			logger.Debug("message for unknown workspace", "workspace_id", msg.WorkspaceID)
			return
		}

		switch msg.Type {
		case notification.MessagePositionReport:
			var report models.PositionReport
			if err := json.Unmarshal(msg.Data, &report); err != nil {
				logger.Warn("malformed position report", "workspace_id", msg.WorkspaceID, "error", err)
				return
			}
			if !w.ReportPosition(report) {
				logger.Debug("position report without pending request", "workspace_id", msg.WorkspaceID)
			}
		case notification.MessageSurfaceEvent:
			var event draw.SurfaceEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				logger.Warn("malformed surface event", "workspace_id", msg.WorkspaceID, "error", err)
				return
			}
			w.Publish(event)
		default:
			logger.Debug("ignoring websocket message", "type", msg.Type)
		}
	}
}
