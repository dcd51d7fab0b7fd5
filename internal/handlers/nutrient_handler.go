package handlers

import (
	"net/http"
	"strings"

	"yield-service/internal/models"
	"yield-service/internal/resolver"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
)

type NutrientComparer interface {
	Compare(state, cropType string) (*models.NutrientReport, error)
}

type NutrientHandler struct {
	lookup   resolver.NutrientLookup
	comparer NutrientComparer
}

func NewNutrientHandler(lookup resolver.NutrientLookup, comparer NutrientComparer) *NutrientHandler {
	return &NutrientHandler{lookup: lookup, comparer: comparer}
}

func (h *NutrientHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/soil_nutrients", h.GetSoilNutrients)
	router.POST("/nutrient-comparison", h.CompareNutrients)
}

type comparisonRequest struct {
	State string `json:"state" binding:"required"`
	Crop  string `json:"crop" binding:"required"`
}

func (h *NutrientHandler) GetSoilNutrients(c *gin.Context) {
	crop := strings.TrimSpace(c.Query("crop"))
	soilType := strings.TrimSpace(c.Query("soil_type"))
	if crop == "" || soilType == "" {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "crop and soil_type are required"))
		return
	}

	nutrients, err := h.lookup.LookupNutrients(c.Request.Context(), crop, soilType)
	if err != nil {
		c.JSON(http.StatusBadGateway, utils.CreateErrorResponse(utils.CodeInternal, "failed to fetch soil nutrients"))
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(nutrients))
}

func (h *NutrientHandler) CompareNutrients(c *gin.Context) {
	var req comparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "state and crop are required"))
		return
	}

	report, err := h.comparer.Compare(req.State, req.Crop)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(report))
}
