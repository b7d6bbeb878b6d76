package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"portal-service/internal/ai"
	"portal-service/internal/aiqueue"
	"portal-service/internal/api/handlers"
	"portal-service/internal/api/middleware"
	"portal-service/internal/config"
	"portal-service/internal/database"
	"portal-service/internal/repositories/postgres"
	"portal-service/internal/services"
	ws "portal-service/internal/websocket"
)

type Router struct {
	engine           *gin.Engine
	authHandler      *handlers.AuthHandler
	userHandler      *handlers.UserHandler
	postHandler      *handlers.PostHandler
	inventoryHandler *handlers.InventoryHandler
	chatHandler      *handlers.ChatHandler
	fileHandler      *handlers.FileHandler
	aiHandler        *handlers.AIHandler
	wsHandler        *handlers.WebSocketHandler
	rateLimitMW      *middleware.RateLimitMiddleware
	authMW           *middleware.AuthMiddleware
}

type Deps struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Storage     *database.MinIOClient
	Engine      ai.Engine
	Queue       *aiqueue.Queue
	Registry    *ws.Registry
	Dispatcher  *ws.Dispatcher
}

func NewRouter(deps Deps) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogAPI())

	userRepo := postgres.NewUserRepository(deps.DB)
	chatRepo := postgres.NewChatRepository(deps.DB)
	postRepo := postgres.NewPostRepository(deps.DB)
	inventoryRepo := postgres.NewInventoryRepository(deps.DB)

	authService := services.NewAuthService(userRepo, deps.Config.JWT.Secret, deps.Config.JWT.ExpirationTime)
	redisService := services.NewRedisService(deps.RedisClient)

	sessionDeps := ws.SessionDeps{
		Registry:   deps.Registry,
		Dispatcher: deps.Dispatcher,
		Verifier:   authService,
		Store:      chatRepo,
		Presence:   redisService,
		Config: ws.SessionConfig{
			HandshakeTimeout:  deps.Config.Chat.HandshakeTimeout,
			HeartbeatInterval: deps.Config.Chat.HeartbeatInterval,
		},
	}

	return &Router{
		engine:           engine,
		authHandler:      handlers.NewAuthHandler(authService),
		userHandler:      handlers.NewUserHandler(userRepo, authService, redisService, deps.Config.Presence.OnlineWindow),
		postHandler:      handlers.NewPostHandler(postRepo),
		inventoryHandler: handlers.NewInventoryHandler(inventoryRepo),
		chatHandler:      handlers.NewChatHandler(chatRepo),
		fileHandler:      handlers.NewFileHandler(chatRepo, deps.Storage),
		aiHandler:        handlers.NewAIHandler(deps.Engine, deps.Queue),
		wsHandler:        handlers.NewWebSocketHandler(sessionDeps),
		rateLimitMW:      middleware.NewRateLimitMiddleware(redisService),
		authMW:           middleware.NewAuthMiddleware(authService),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")

	// Session auth happens in-band over the socket, not via header.
	api.GET("/ws/chat", r.wsHandler.Serve)

	public := api.Group("/auth")
	public.Use(r.rateLimitMW.RateLimitIP(20, time.Minute))
	{
		public.POST("/login", r.authHandler.Login)
	}

	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	{
		auth.POST("/auth/logout", r.authHandler.Logout)
		auth.GET("/users/me", r.authHandler.Me)
		auth.PUT("/users/me/password", r.authHandler.ChangePassword)
		auth.POST("/heartbeat", r.userHandler.Heartbeat)
		auth.GET("/users/online", r.userHandler.Online)
		auth.POST("/event", r.userHandler.EventLog)

		posts := auth.Group("/posts")
		posts.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			posts.GET("", r.postHandler.List)
			posts.POST("", r.postHandler.Create)
			posts.GET("/:id", r.postHandler.Get)
			posts.DELETE("/:id", r.postHandler.Delete)
			posts.POST("/:id/like", r.postHandler.Like)
			posts.POST("/:id/comments", r.postHandler.AddComment)
		}

		inventory := auth.Group("/inventory")
		inventory.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			inventory.GET("", r.inventoryHandler.List)
			inventory.POST("", r.inventoryHandler.Create)
			inventory.PUT("/:id", r.inventoryHandler.Update)
			inventory.DELETE("/:id", r.inventoryHandler.Delete)
		}

		chat := auth.Group("/chat")
		chat.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			chat.GET("/rooms", r.chatHandler.Rooms)
			chat.GET("/rooms/:room_id/messages", r.chatHandler.History)
			chat.POST("/files", r.fileHandler.Upload)
			chat.GET("/files/:file_id", r.fileHandler.Download)
		}

		aiGroup := auth.Group("/ai")
		{
			aiGroup.POST("/chat", r.aiHandler.Chat)
			aiGroup.GET("/status", r.aiHandler.Status)
		}

		admin := auth.Group("/users")
		admin.Use(r.authMW.RequireAdmin())
		{
			admin.GET("", r.userHandler.List)
			admin.POST("", r.userHandler.Create)
			admin.GET("/:id", r.userHandler.Get)
			admin.PUT("/:id", r.userHandler.Update)
			admin.DELETE("/:id", r.userHandler.Delete)
			admin.PUT("/:id/password", r.userHandler.ResetPassword)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
