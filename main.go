package main

import (
	"garabingo/config"
	"garabingo/handlers"
	"garabingo/middleware"
	"garabingo/models"
	"garabingo/routes"
	"garabingo/services"
	"garabingo/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Infof("no .env file found, reading environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Server{},
		&models.User{},
		&models.Game{},
		&models.GameParticipant{},
		&models.Card{},
		&models.CardCell{},
		&models.GameDraw{},
		&models.CardInvite{},
		&models.RouletteResult{},
	)
	if err != nil {
		logger.Fatalf("failed to migrate database: %v", err)
	}

	redisClient := config.InitRedis(cfg)
	if redisClient == nil {
		logger.Infof("no REDIS_ADDR configured, broadcast fan-out is local only")
	}

	authService := services.NewAuthService(cfg.JWTSecret)
	serverService := services.NewServerService(db)
	gameService := services.NewGameService(db, services.GameServiceOptions{
		RequireAwardRange: cfg.RequireAwardRange,
		InviteTTL:         cfg.InviteTTL,
	})
	cardService := services.NewCardService(db, authService)

	hub := services.NewHub(gameService, redisClient)
	go hub.Run()

	serverHandler := handlers.NewServerHandler(serverService, gameService)
	gameHandler := handlers.NewGameHandler(gameService, hub)
	cardHandler := handlers.NewCardHandler(cardService, hub)

	router := gin.Default()
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, serverHandler, gameHandler, cardHandler, hub, gameService, authService)

	logger.Infof("server starting on port %s", cfg.Port)
	if err := router.Run(cfg.BindAddress + ":" + cfg.Port); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}
