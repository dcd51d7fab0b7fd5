package handlers

import (
	"context"
	"io"
	"net/http"

	"yield-service/internal/models"
	"yield-service/internal/services"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
)

type CropHealthAnalyzer interface {
	Analyze(ctx context.Context, image []byte, filename string) (models.HealthAssessment, error)
}

type HealthHandler struct {
	analyzer CropHealthAnalyzer
}

func NewHealthHandler(analyzer CropHealthAnalyzer) *HealthHandler {
	return &HealthHandler{analyzer: analyzer}
}

func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/analyze_health", h.AnalyzeHealth)
}

func (h *HealthHandler) AnalyzeHealth(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "image file is required"))
		return
	}
	if fileHeader.Size > services.MaxHealthImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, utils.CreateErrorResponse(utils.CodeBadRequest, "image is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "failed to read image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxHealthImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "failed to read image"))
		return
	}

	assessment, err := h.analyzer.Analyze(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(assessment))
}
