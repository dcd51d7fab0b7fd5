package handlers

import (
	"errors"
	"net/http"

	"yield-service/internal/location"
	"yield-service/internal/models"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	var precondition *models.PreconditionError
	switch {
	case errors.As(err, &precondition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   utils.APIError{Code: utils.CodeIncompletePrecondition, Message: precondition.Message},
			"missing": precondition.Missing,
		})
	case errors.Is(err, models.ErrInvalidGeometry):
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeInvalidGeometry, err.Error()))
	case errors.Is(err, models.ErrIncompletePrecondition):
		c.JSON(http.StatusUnprocessableEntity, utils.CreateErrorResponse(utils.CodeIncompletePrecondition, err.Error()))
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, utils.CreateErrorResponse(utils.CodeUnauthorized, models.ErrUnauthorized.Error()))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, utils.CreateErrorResponse(utils.CodeNotFound, err.Error()))
	case errors.Is(err, models.ErrPredictionFailed):
		c.JSON(http.StatusBadGateway, utils.CreateErrorResponse(utils.CodePredictionFailed, "error in prediction, please try again"))
	case errors.Is(err, models.ErrClassifierFailed):
		c.JSON(http.StatusBadGateway, utils.CreateErrorResponse(utils.CodeClassifierFailed, "error analyzing image, please try again"))
	case errors.Is(err, location.ErrSuperseded):
		c.JSON(http.StatusConflict, utils.CreateErrorResponse(utils.CodeLocationSuperseded, err.Error()))
	default:
		if kind, ok := location.KindOf(err); ok {
			c.JSON(http.StatusUnprocessableEntity, utils.CreateErrorResponse("LOCATION_"+string(kind), kind.UserMessage()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.CreateErrorResponse(utils.CodeInternal, "internal server error"))
	}
}
