package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// DashboardHandler serves the coach's home: activity and yearly stats.
type DashboardHandler struct {
	dashboardService service.DashboardService
	log              logging.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, log logging.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, log: log}
}

// Feed godoc
// @Summary Most recent activity across clients
// @Tags Dashboard
// @Security BearerAuth
// @Router /admin/dashboard/feed [get]
func (h *DashboardHandler) Feed(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	items, err := h.dashboardService.Feed(c.Request.Context(), sess.ID)
	if err != nil {
		respondError(c, h.log, err, "Failed to load activity.")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *DashboardHandler) Updates(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	groups, err := h.dashboardService.Updates(c.Request.Context(), sess.ID)
	if err != nil {
		respondError(c, h.log, err, "Failed to load updates.")
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Dismiss godoc
// @Summary Hide an activity item for the rest of this session
// @Tags Dashboard
// @Security BearerAuth
// @Router /admin/dashboard/dismissed [post]
func (h *DashboardHandler) Dismiss(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	var req DismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	h.dashboardService.Dismiss(sess.ID, req.ItemID)
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	st, err := h.dashboardService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to load statistics.")
		return
	}
	c.JSON(http.StatusOK, st)
}
