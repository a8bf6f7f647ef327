package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// AuthHandler serves sign-in, sign-out and password flows.
type AuthHandler struct {
	authService      service.AuthService
	dashboardService service.DashboardService
	log              logging.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, dashboardService service.DashboardService, log logging.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, dashboardService: dashboardService, log: log}
}

// --- Request/Response Structs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	*service.LoginResult
	Redirect string `json:"redirect"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

type ResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type SessionResponse struct {
	UserID     string      `json:"userId"`
	Name       string      `json:"name"`
	Role       domain.Role `json:"role"`
	State      guard.State `json:"state"`
	FirstLogin bool        `json:"firstLogin"`
	Redirect   string      `json:"redirect"`
}

// --- Handler Methods ---

// AdminLogin godoc
// @Summary Sign the coach in
// @Tags Auth
// @Router /auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, h.authService.AdminLogin, guard.StateAdmin)
}

// ClientLogin godoc
// @Summary Sign a client in to the portal
// @Tags Auth
// @Router /auth/client/login [post]
func (h *AuthHandler) ClientLogin(c *gin.Context) {
	h.login(c, h.authService.ClientLogin, guard.StateClient)
}

func (h *AuthHandler) login(c *gin.Context, signIn func(ctx context.Context, email, password string) (*service.LoginResult, error), state guard.State) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	res, err := signIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err, "An unexpected error occurred during login")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		LoginResult: res,
		Redirect:    guard.DefaultRoute(state, res.FirstLogin),
	})
}

// Me godoc
// @Summary Current session and its default screen
// @Tags Auth
// @Security BearerAuth
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, SessionResponse{
		UserID:     sess.IdentityID,
		Name:       sess.Name,
		Role:       sess.Role(),
		State:      sess.State,
		FirstLogin: sess.FirstLogin,
		Redirect:   guard.DefaultRoute(sess.State, sess.FirstLogin),
	})
}

// Logout godoc
// @Summary Revoke the current session
// @Tags Auth
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.authService.Logout(claims)
	h.dashboardService.EndSession(claims.ID)
	c.JSON(http.StatusOK, gin.H{"redirect": guard.RouteLogin})
}

// ChangePassword godoc
// @Summary Set a new password for the signed-in identity
// @Description For clients this also completes first access.
// @Tags Auth
// @Security BearerAuth
// @Router /auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	id, sess, ok := sessionIdentity(c)
	if !ok {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), id, sess.Role(), req.NewPassword); err != nil {
		respondError(c, h.log, err, "Failed to change password.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect": guard.DefaultRoute(sess.State, false)})
}

// RequestPasswordReset godoc
// @Summary Email a password reset link
// @Description Always answers 202 so callers cannot tell which addresses exist.
// @Tags Auth
// @Router /auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.log, err, "Failed to request password reset.")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "If the address is registered, a reset link has been sent."})
}

// ConfirmPasswordReset godoc
// @Summary Set a new password with a reset token
// @Tags Auth
// @Router /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, h.log, err, "Failed to reset password.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect": guard.RouteLogin})
}
