package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// PortalHandler serves the client portal. Every call is scoped to the
// signed-in client.
type PortalHandler struct {
	dashboardService service.DashboardService
	paymentService   service.PaymentService
	checkService     service.CheckService
	anamnesiService  service.AnamnesiService
	uploadService    service.UploadService
	log              logging.Logger
}

func NewPortalHandler(
	dashboardService service.DashboardService,
	paymentService service.PaymentService,
	checkService service.CheckService,
	anamnesiService service.AnamnesiService,
	uploadService service.UploadService,
	log logging.Logger,
) *PortalHandler {
	return &PortalHandler{
		dashboardService: dashboardService,
		paymentService:   paymentService,
		checkService:     checkService,
		anamnesiService:  anamnesiService,
		uploadService:    uploadService,
		log:              log,
	}
}

// Dashboard godoc
// @Summary Own status, expiry, next check-in and last check
// @Tags Portal
// @Security BearerAuth
// @Router /client/dashboard [get]
func (h *PortalHandler) Dashboard(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	d, err := h.dashboardService.ClientDashboard(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to load dashboard.")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *PortalHandler) Payments(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	history, err := h.paymentService.History(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve payments.")
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *PortalHandler) ListChecks(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	checks, err := h.checkService.List(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve checks.")
		return
	}
	c.JSON(http.StatusOK, checks)
}

// SubmitCheck godoc
// @Summary Submit a progress check
// @Description Photos must have been uploaded under the client's checks folder.
// @Tags Portal
// @Security BearerAuth
// @Router /client/checks [post]
func (h *PortalHandler) SubmitCheck(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	check, err := h.checkService.Submit(c.Request.Context(), clientID, req.input())
	if err != nil {
		respondError(c, h.log, err, "Failed to submit check.")
		return
	}
	c.JSON(http.StatusCreated, check)
}

// EditCheck godoc
// @Summary Edit a check while its edit window is open
// @Tags Portal
// @Security BearerAuth
// @Router /client/checks/{checkId} [put]
func (h *PortalHandler) EditCheck(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	checkID, ok := pathObjectID(c, "checkId")
	if !ok {
		return
	}
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	check, err := h.checkService.Edit(c.Request.Context(), clientID, checkID, req.input())
	if err != nil {
		respondError(c, h.log, err, "Failed to edit check.")
		return
	}
	c.JSON(http.StatusOK, check)
}

func (h *PortalHandler) GetAnamnesi(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	a, err := h.anamnesiService.Get(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve anamnesi.")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *PortalHandler) SaveAnamnesi(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req AnamnesiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	a, err := h.anamnesiService.Save(c.Request.Context(), clientID, req.answers())
	if err != nil {
		respondError(c, h.log, err, "Failed to save anamnesi.")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *PortalHandler) RequestUploadURL(c *gin.Context) {
	clientID, _, ok := sessionIdentity(c)
	if !ok {
		return
	}
	requestUploadURL(c, h.uploadService, h.log, clientID)
}

func requestUploadURL(c *gin.Context, uploadService service.UploadService, log logging.Logger, clientID primitive.ObjectID) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	res, err := uploadService.RequestUploadURL(c.Request.Context(), clientID, req.Folder, req.ContentType)
	if err != nil {
		respondError(c, log, err, "Could not generate upload URL.")
		return
	}
	c.JSON(http.StatusOK, res)
}
