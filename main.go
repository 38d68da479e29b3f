package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-core/internal/attach"
	"chat-core/internal/auth"
	"chat-core/internal/bus"
	"chat-core/internal/config"
	"chat-core/internal/db"
	"chat-core/internal/dispatch"
	"chat-core/internal/handlers"
	"chat-core/internal/logging"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/repositories"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

const serviceName = "chat-core"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	database, err := db.Connect(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Environment, logger)

	store, err := attach.NewStore(cfg.MediaDir, "/media")
	if err != nil {
		logger.Fatal("failed to prepare media dir", zap.Error(err))
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	messageBus := bus.New()
	presence := ws.NewPresence()

	dispatcher := dispatch.New(messageBus, conversationRepo, userRepo, messageRepo, logger)
	go dispatcher.Run(ctx)

	conversationHandler := handlers.NewConversationHandler(conversationRepo, messageRepo, auditEmitter)
	friendRequestHandler := handlers.NewFriendRequestHandler(userRepo, dispatcher)

	chatWS := ws.NewChatWebSocketHandler(verifier, conversationRepo, messageRepo, store, messageBus, presence, logger)
	notificationWS := ws.NewNotificationWebSocketHandler(verifier, messageBus, logger)
	friendRequestWS := ws.NewFriendRequestWebSocketHandler(verifier, messageBus, userRepo, dispatcher, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.Auth(verifier)

	router.POST("/conversations", authMiddleware, conversationHandler.CreateConversation)
	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/conversations/:conversation/messages", authMiddleware, conversationHandler.GetMessages)
	router.POST("/friends/requests", authMiddleware, friendRequestHandler.SendRequest)

	router.GET("/ws/chat/:conversation", chatWS.Handle)
	router.GET("/ws/notifications", notificationWS.Handle)
	router.GET("/ws/friend_requests", friendRequestWS.Handle)

	router.Static("/media", store.Dir())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
}
