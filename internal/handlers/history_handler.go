package handlers

import (
	"net/http"
	"strings"

	"yield-service/internal/services"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	history *services.HistoryService
	auth    *Middleware
}

func NewHistoryHandler(history *services.HistoryService, auth *Middleware) *HistoryHandler {
	return &HistoryHandler{history: history, auth: auth}
}

func (h *HistoryHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/predictions", h.auth.Identify())
	group.GET("/history", h.ListHistory)
	group.GET("/count", h.CountHistory)
}

// requestEmail takes the caller's identity, or the query parameter for anonymous callers.
// An identified caller may only name their own email.
func requestEmail(c *gin.Context) (string, bool) {
	email := strings.TrimSpace(c.Query("email"))
	if identity := IdentityFrom(c); identity != nil && identity.Email != "" {
		if email != "" && !strings.EqualFold(email, identity.Email) {
			c.JSON(http.StatusForbidden, utils.CreateErrorResponse(utils.CodeForbidden, "history of another user is not accessible"))
			return "", false
		}
		email = identity.Email
	}
	if ok, _ := utils.ValidateEmail(email); !ok {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, "a valid email is required"))
		return "", false
	}
	return email, true
}

func (h *HistoryHandler) ListHistory(c *gin.Context) {
	email, ok := requestEmail(c)
	if !ok {
		return
	}
	limit, err := utils.GetQueryParamAsInt(c, "limit", 20)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}
	offset, err := utils.GetQueryParamAsInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse(utils.CodeBadRequest, err.Error()))
		return
	}

	records, err := h.history.List(c.Request.Context(), email, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.history.Count(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreatePageResponse(records, total, limit, offset))
}

func (h *HistoryHandler) CountHistory(c *gin.Context) {
	email, ok := requestEmail(c)
	if !ok {
		return
	}
	count, err := h.history.Count(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"email": email, "count": count}))
}
