package main

import (
	"creatorchat-service/internal/billing"
	"creatorchat-service/internal/handler"
	"creatorchat-service/internal/identity"
	"creatorchat-service/internal/llm"
	"creatorchat-service/internal/middleware"
	"creatorchat-service/internal/ragie"
	"creatorchat-service/internal/store"
	"creatorchat-service/pkg/config"
	"creatorchat-service/pkg/database"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting creator chat service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg)
	log.Info("Prometheus metrics initialized")

	// External collaborators
	verifier := identity.NewFirebaseVerifier(cfg.Firebase.APIKey)
	retriever := ragie.NewClient(cfg.Ragie.APIKey, cfg.Ragie.BaseURL)
	streamer := llm.NewOpenAIStreamer(&cfg.OpenAI)
	stripeClient := billing.NewStripeClient(&cfg.Stripe)
	if !stripeClient.Enabled() {
		log.Warn("Payment configuration missing; paid tier disabled")
	}

	// Entitlement store and webhook reconciler
	entitlements := store.New(database.GetDB())
	reconciler := billing.NewReconciler(entitlements, log)

	// Handlers
	chatHandler := handler.NewChatHandler(verifier, retriever, streamer)
	webhookHandler := handler.NewWebhookHandler(stripeClient, reconciler)
	billingHandler := handler.NewBillingHandler(stripeClient, cfg.App.BaseURL)
	ragieHandler := handler.NewRagieHandler(retriever, cfg.App.BaseURL)
	subscriptionHandler := handler.NewSubscriptionHandler(entitlements)
	meHandler := handler.NewMeHandler(entitlements)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Self-authenticating routes: chat verifies its own bearer token so an
	// unauthenticated request costs nothing downstream, and the webhook is
	// authenticated by its signature.
	e.POST("/api/chat", chatHandler.HandleChat)
	e.POST("/api/stripe/webhook", webhookHandler.HandleWebhook)

	// Browser redirect legs: authenticated by the short-lived state they
	// carry, not by a bearer token.
	e.GET("/api/stripe/connect/callback", billingHandler.ConnectCallback)
	e.GET("/api/ragie/callback", ragieHandler.Callback)

	// API routes - all require a verified identity token
	api := e.Group("/api")
	api.Use(middleware.FirebaseAuth(verifier))

	// Accounts
	api.POST("/account", handler.CreateAccount)
	api.GET("/me", meHandler.GetMe)

	// Creator orgs
	orgs := api.Group("/orgs")
	orgs.POST("", handler.CreateOrg)
	orgs.GET("", handler.ListOrgs)
	orgs.GET("/:id", handler.GetOrg)
	orgs.PATCH("/:id", handler.UpdateOrg)

	// Free-tier entitlements
	api.POST("/subscriptions", subscriptionHandler.Subscribe)
	api.DELETE("/subscriptions/:orgId", subscriptionHandler.Unsubscribe)

	// Creator payment onboarding and fan checkout
	stripeGroup := api.Group("/stripe")
	stripeGroup.POST("/connect", billingHandler.Connect)
	stripeGroup.POST("/price", billingHandler.CreatePrice)
	stripeGroup.POST("/checkout", billingHandler.Checkout)
	stripeGroup.POST("/portal", billingHandler.Portal)

	// Content-source connections
	api.POST("/ragie/init-connection", ragieHandler.InitConnection)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
