package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth      service.AuthService
	Clients   service.ClientService
	Payments  service.PaymentService
	Checks    service.CheckService
	Anamnesi  service.AnamnesiService
	Uploads   service.UploadService
	Chat      service.ChatService
	Dashboard service.DashboardService
}

func SetupRoutes(router *gin.Engine, svc Services, log logging.Logger) {
	authHandler := NewAuthHandler(svc.Auth, svc.Dashboard, log)
	clientHandler := NewClientHandler(svc.Clients, svc.Payments, svc.Checks, svc.Anamnesi, svc.Uploads, log)
	portalHandler := NewPortalHandler(svc.Dashboard, svc.Payments, svc.Checks, svc.Anamnesi, svc.Uploads, log)
	chatHandler := NewChatHandler(svc.Chat, log)
	dashboardHandler := NewDashboardHandler(svc.Dashboard, log)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")

	// Public partition
	authGroup := apiV1.Group("/auth")
	{
		authGroup.POST("/admin/login", authHandler.AdminLogin)
		authGroup.POST("/client/login", authHandler.ClientLogin)
		authGroup.POST("/password-reset", authHandler.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth), SessionGate(svc.Auth, log))
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/password", authHandler.ChangePassword)
	}

	// Admin partition
	adminGroup := protected.Group("/admin")
	adminGroup.Use(RequirePartition(guard.PartitionAdmin))
	{
		adminGroup.GET("/dashboard/feed", dashboardHandler.Feed)
		adminGroup.GET("/dashboard/updates", dashboardHandler.Updates)
		adminGroup.POST("/dashboard/dismissed", dashboardHandler.Dismiss)
		adminGroup.GET("/dashboard/stats", dashboardHandler.Stats)

		adminGroup.GET("/clients", clientHandler.ListClients)
		adminGroup.POST("/clients", clientHandler.CreateClient)
		adminGroup.GET("/clients/search", clientHandler.SearchClients)
		adminGroup.GET("/clients/:clientId", clientHandler.GetClient)
		adminGroup.PATCH("/clients/:clientId", clientHandler.UpdateClient)
		adminGroup.DELETE("/clients/:clientId", clientHandler.DeleteClient)

		adminGroup.GET("/clients/:clientId/payments", clientHandler.ListPayments)
		adminGroup.POST("/clients/:clientId/payments", clientHandler.RecordPayment)
		adminGroup.DELETE("/clients/:clientId/payments/:paymentId", clientHandler.DeletePayment)

		adminGroup.GET("/clients/:clientId/checks", clientHandler.ListChecks)
		adminGroup.PUT("/clients/:clientId/checks/:checkId/feedback", clientHandler.SetCheckFeedback)
		adminGroup.DELETE("/clients/:clientId/checks/:checkId", clientHandler.DeleteCheck)

		adminGroup.GET("/clients/:clientId/anamnesi", clientHandler.GetAnamnesi)
		adminGroup.PUT("/clients/:clientId/anamnesi", clientHandler.SaveAnamnesi)
		adminGroup.POST("/clients/:clientId/uploads", clientHandler.RequestUploadURL)

		adminGroup.POST("/clients/:clientId/chat", chatHandler.OpenThread)
		adminGroup.GET("/chats", chatHandler.ListThreads)
		adminGroup.GET("/chats/:threadId/messages", chatHandler.ListMessages)
		adminGroup.POST("/chats/:threadId/messages", chatHandler.SendMessage)
		adminGroup.GET("/chats/:threadId/stream", chatHandler.Stream)
	}

	// Client partition
	clientGroup := protected.Group("/client")
	clientGroup.Use(RequirePartition(guard.PartitionClient))
	{
		clientGroup.GET("/dashboard", portalHandler.Dashboard)
		clientGroup.GET("/payments", portalHandler.Payments)
		clientGroup.GET("/checks", portalHandler.ListChecks)
		clientGroup.POST("/checks", portalHandler.SubmitCheck)
		clientGroup.PUT("/checks/:checkId", portalHandler.EditCheck)
		clientGroup.GET("/anamnesi", portalHandler.GetAnamnesi)
		clientGroup.PUT("/anamnesi", portalHandler.SaveAnamnesi)
		clientGroup.POST("/uploads", portalHandler.RequestUploadURL)

		clientGroup.GET("/chat", chatHandler.ClientThread)
		clientGroup.GET("/chats/:threadId/messages", chatHandler.ListMessages)
		clientGroup.POST("/chats/:threadId/messages", chatHandler.SendMessage)
		clientGroup.GET("/chats/:threadId/stream", chatHandler.Stream)
	}

	// Fallback partition
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found")
	})
}
