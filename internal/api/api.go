package api

import (
	"net/http"

	adminHandler "salespilot/internal/admin/handler"
	aiHandler "salespilot/internal/ai/handler"
	analyticsHandler "salespilot/internal/analytics/handler"
	authHandler "salespilot/internal/auth/handler"
	campaignHandler "salespilot/internal/campaign/handler"
	chatHandler "salespilot/internal/chat/handler"
	integrationHandler "salespilot/internal/integration/handler"
	onboardingHandler "salespilot/internal/onboarding/handler"
	"salespilot/internal/realtime"
	webhookHandler "salespilot/internal/webhook/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router             *gin.RouterGroup
	authHandler        authHandler.Handler
	campaignHandler    campaignHandler.Handler
	chatHandler        chatHandler.Handler
	integrationHandler integrationHandler.Handler
	webhookHandler     webhookHandler.Handler
	aiHandler          aiHandler.Handler
	analyticsHandler   analyticsHandler.Handler
	onboardingHandler  onboardingHandler.Handler
	adminHandler       adminHandler.Handler
	realtimeHandler    realtime.Handler
}

func New(
	router *gin.RouterGroup,
	authHandler authHandler.Handler,
	campaignHandler campaignHandler.Handler,
	chatHandler chatHandler.Handler,
	integrationHandler integrationHandler.Handler,
	webhookHandler webhookHandler.Handler,
	aiHandler aiHandler.Handler,
	analyticsHandler analyticsHandler.Handler,
	onboardingHandler onboardingHandler.Handler,
	adminHandler adminHandler.Handler,
	realtimeHandler realtime.Handler,
) API {
	return API{
		router:             router,
		authHandler:        authHandler,
		campaignHandler:    campaignHandler,
		chatHandler:        chatHandler,
		integrationHandler: integrationHandler,
		webhookHandler:     webhookHandler,
		aiHandler:          aiHandler,
		analyticsHandler:   analyticsHandler,
		onboardingHandler:  onboardingHandler,
		adminHandler:       adminHandler,
		realtimeHandler:    realtimeHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/register", a.authHandler.HandleSignup)
		authGroup.POST("/signup", a.authHandler.HandleSignup)
		authGroup.POST("/login", a.authHandler.HandleLogin)
		authGroup.POST("/signin", a.authHandler.HandleLogin)
		authGroup.GET("/me", a.authHandler.HandleJWTMiddleware, a.authHandler.HandleMe)
	}
	{
		// Meta calls these without a session; verification is by token and
		// app-secret-signed payloads rather than JWT.
		webhookGroup := apiGroup.Group("/webhooks")
		webhookGroup.GET("/facebook", a.webhookHandler.HandleVerify)
		webhookGroup.POST("/facebook", a.webhookHandler.HandleFacebookEvent)
		webhookGroup.GET("/instagram", a.webhookHandler.HandleVerify)
		webhookGroup.POST("/instagram", a.webhookHandler.HandleInstagramEvent)
	}
	apiGroup.GET("/integrations/facebook/callback", a.integrationHandler.HandleFacebookCallback)
	apiGroup.GET("/realtime/ws", a.realtimeHandler.HandleConnect)

	protectedGroup := apiGroup.Group("/", a.authHandler.HandleJWTMiddleware)
	{
		campaignGroup := protectedGroup.Group("/campaigns")
		campaignGroup.POST("", a.campaignHandler.HandleCreate)
		campaignGroup.GET("", a.campaignHandler.HandleList)
		campaignGroup.GET("/:id", a.campaignHandler.HandleGet)
		campaignGroup.GET("/:id/stats", a.campaignHandler.HandleStats)
		campaignGroup.PUT("/:id", a.campaignHandler.HandleUpdate)
		campaignGroup.DELETE("/:id", a.campaignHandler.HandleDelete)
		campaignGroup.PATCH("/:id/status", a.campaignHandler.HandleStatus)
	}
	{
		chatGroup := protectedGroup.Group("/chats")
		chatGroup.GET("", a.chatHandler.HandleList)
		chatGroup.GET("/stats/overview", a.chatHandler.HandleStatsOverview)
		chatGroup.GET("/:id", a.chatHandler.HandleGet)
		chatGroup.GET("/:id/messages", a.chatHandler.HandleMessages)
		chatGroup.POST("/:id/messages", a.chatHandler.HandleSendMessage)
		chatGroup.PATCH("/:id/status", a.chatHandler.HandleStatus)
		chatGroup.POST("/:id/conversion", a.chatHandler.HandleConversion)
	}
	{
		integrationGroup := protectedGroup.Group("/integrations")
		integrationGroup.GET("", a.integrationHandler.HandleList)
		integrationGroup.POST("/facebook/connect", a.integrationHandler.HandleFacebookConnect)
		integrationGroup.POST("/facebook/disconnect", a.integrationHandler.HandleFacebookDisconnect)
		integrationGroup.GET("/facebook/auth-url", a.integrationHandler.HandleFacebookAuthURL)
		integrationGroup.GET("/:platform/status", a.integrationHandler.HandleStatus)
	}
	{
		aiGroup := protectedGroup.Group("/ai")
		aiGroup.POST("/leo/chat", a.aiHandler.HandleLeoChat)
		aiGroup.GET("/global/status", a.aiHandler.HandleStatus)
		aiGroup.POST("/global/retrain", a.aiHandler.HandleRetrain)
	}
	{
		analyticsGroup := protectedGroup.Group("/analytics")
		analyticsGroup.GET("/dashboard", a.analyticsHandler.HandleDashboard)
		analyticsGroup.GET("/campaigns", a.analyticsHandler.HandleCampaigns)
		analyticsGroup.GET("/campaigns/:id", a.analyticsHandler.HandleCampaign)
		analyticsGroup.GET("/real-time", a.analyticsHandler.HandleRealTime)
		analyticsGroup.GET("/hourly", a.analyticsHandler.HandleHourly)
	}
	{
		onboardingGroup := protectedGroup.Group("/onboarding")
		onboardingGroup.POST("/complete", a.onboardingHandler.HandleComplete)
		onboardingGroup.GET("/status", a.onboardingHandler.HandleStatus)
	}
	{
		dbmsGroup := protectedGroup.Group("/dbms")
		dbmsGroup.GET("/stats", a.adminHandler.HandleStats)
		dbmsGroup.DELETE("/wipe", a.adminHandler.HandleWipe)
		dbmsGroup.GET("/:collection", a.adminHandler.HandleBrowse)
		dbmsGroup.GET("/:collection/:id", a.adminHandler.HandleGetRow)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
