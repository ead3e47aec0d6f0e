package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"mira-companion/internal/ai"
	appsvc "mira-companion/internal/app"
	"mira-companion/internal/bootstrap"
	"mira-companion/internal/cache"
	"mira-companion/internal/decorate"
	"mira-companion/internal/pkg/randutil"
	"mira-companion/internal/platform/rabbitmq"
	"mira-companion/internal/repository"
	"mira-companion/internal/transport/http/handler"
	"mira-companion/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	healthHandler := handler.NewHealthHandler(app)
	router.StaticFile("/", "web/login.html")
	router.StaticFile("/chat", "web/index.html")
	router.StaticFile("/login", "web/login.html")
	router.StaticFile("/signup", "web/signup.html")
	router.StaticFile("/profile", "web/profile.html")
	router.Static("/avatars", "web/avatars")
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	// One decorator and one engine serve every request goroutine, so the
	// shared rand source must be the locked one.
	rng := randutil.NewLocked(time.Now().UnixNano())
	decorator := decorate.New(rng, app.Config.Chat.AffectSuffixProb)

	llmCfg := ai.ChatConfig{
		BaseURL:     app.Config.LLM.BaseURL,
		APIKey:      app.Config.LLM.APIKey,
		Model:       app.Config.LLM.Model,
		Temperature: app.Config.LLM.Temperature,
		MaxTokens:   app.Config.LLM.MaxTokens,
	}

	engine := appsvc.NewSessionEngine(
		userRepo,
		messageRepo,
		publisher,
		historyCache,
		ai.NewOpenAICompatibleClient(),
		decorator,
		llmCfg,
		appsvc.EngineOptions{
			MaxTurns:       app.Config.Chat.MaxTurns,
			TypingDelayMin: time.Duration(app.Config.Chat.TypingDelayMinMS) * time.Millisecond,
			TypingDelayMax: time.Duration(app.Config.Chat.TypingDelayMaxMS) * time.Millisecond,
			Rand:           rng,
		},
	)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	profileService := appsvc.NewProfileService(userRepo, app.Config.Profile.AvatarMaxBytes)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(engine)
	profileHandler := handler.NewProfileHandler(profileService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)
	chatGroup.DELETE("/history", chatHandler.ForgetMemory)

	profileGroup := v1.Group("/profile")
	profileGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	profileGroup.GET("", profileHandler.Get)
	profileGroup.PUT("", profileHandler.Update)
	profileGroup.GET("/avatar", profileHandler.Avatar)

	v1.GET("/companion/profile", profileHandler.CompanionProfile)

	return router
}
