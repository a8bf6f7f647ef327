package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// ClientHandler serves the coach's client administration.
type ClientHandler struct {
	clientService   service.ClientService
	paymentService  service.PaymentService
	checkService    service.CheckService
	anamnesiService service.AnamnesiService
	uploadService   service.UploadService
	log             logging.Logger
}

func NewClientHandler(
	clientService service.ClientService,
	paymentService service.PaymentService,
	checkService service.CheckService,
	anamnesiService service.AnamnesiService,
	uploadService service.UploadService,
	log logging.Logger,
) *ClientHandler {
	return &ClientHandler{
		clientService:   clientService,
		paymentService:  paymentService,
		checkService:    checkService,
		anamnesiService: anamnesiService,
		uploadService:   uploadService,
		log:             log,
	}
}

// CreateClient godoc
// @Summary Onboard a client
// @Description Creates the client and its portal identity with a temporary password.
// @Tags Clients
// @Security BearerAuth
// @Router /admin/clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	in := service.OnboardInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		PlanType:  req.PlanType,
		Status:    req.Status,
		ExpiresAt: req.ExpiresAt,
	}
	if req.InitialPayment != nil {
		p := req.InitialPayment.input()
		in.InitialPayment = &p
	}

	res, err := h.clientService.Onboard(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err, "Failed to create client.")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListClients godoc
// @Summary List clients with their payment status
// @Tags Clients
// @Security BearerAuth
// @Router /admin/clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.clientService.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve clients.")
		return
	}
	c.JSON(http.StatusOK, clients)
}

// SearchClients godoc
// @Summary Search clients by name prefix
// @Tags Clients
// @Security BearerAuth
// @Param q query string true "at least two characters"
// @Router /admin/clients/search [get]
func (h *ClientHandler) SearchClients(c *gin.Context) {
	clients, err := h.clientService.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.log, err, "Failed to search clients.")
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	client, err := h.clientService.Get(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve client.")
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), clientID, service.ClientUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		PlanType:    req.PlanType,
		Status:      req.Status,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		respondError(c, h.log, err, "Failed to update client.")
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient godoc
// @Summary Delete a client and everything attached to it
// @Tags Clients
// @Security BearerAuth
// @Router /admin/clients/{clientId} [delete]
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	if err := h.clientService.Delete(c.Request.Context(), clientID); err != nil {
		respondError(c, h.log, err, "Failed to delete client.")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Payments ---

// RecordPayment godoc
// @Summary Record a renewal and extend the subscription
// @Tags Payments
// @Security BearerAuth
// @Router /admin/clients/{clientId}/payments [post]
func (h *ClientHandler) RecordPayment(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), clientID, req.input())
	if err != nil {
		respondError(c, h.log, err, "Failed to record payment.")
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *ClientHandler) ListPayments(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
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

func (h *ClientHandler) DeletePayment(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	paymentID, ok := pathObjectID(c, "paymentId")
	if !ok {
		return
	}
	if err := h.paymentService.DeletePayment(c.Request.Context(), clientID, paymentID); err != nil {
		respondError(c, h.log, err, "Failed to delete payment.")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Checks ---

func (h *ClientHandler) ListChecks(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
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

// SetCheckFeedback godoc
// @Summary Leave coach feedback on a check
// @Tags Checks
// @Security BearerAuth
// @Router /admin/clients/{clientId}/checks/{checkId}/feedback [put]
func (h *ClientHandler) SetCheckFeedback(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	checkID, ok := pathObjectID(c, "checkId")
	if !ok {
		return
	}
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if err := h.checkService.SetFeedback(c.Request.Context(), clientID, checkID, req.Feedback); err != nil {
		respondError(c, h.log, err, "Failed to save feedback.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ClientHandler) DeleteCheck(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	checkID, ok := pathObjectID(c, "checkId")
	if !ok {
		return
	}
	if err := h.checkService.Delete(c.Request.Context(), clientID, checkID); err != nil {
		respondError(c, h.log, err, "Failed to delete check.")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Anamnesi ---

func (h *ClientHandler) GetAnamnesi(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
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

// SaveAnamnesi godoc
// @Summary Fill in the questionnaire on the client's behalf
// @Tags Anamnesi
// @Security BearerAuth
// @Router /admin/clients/{clientId}/anamnesi [put]
func (h *ClientHandler) SaveAnamnesi(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
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

// RequestUploadURL issues an upload URL under the client's prefix, used
// when the coach attaches photos for them.
func (h *ClientHandler) RequestUploadURL(c *gin.Context) {
	clientID, ok := pathObjectID(c, "clientId")
	if !ok {
		return
	}
	requestUploadURL(c, h.uploadService, h.log, clientID)
}
