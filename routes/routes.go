package routes

import (
	"net/http"
	"strconv"

	"garabingo/handlers"
	"garabingo/middleware"
	"garabingo/services"
	"garabingo/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(
	router *gin.Engine,
	serverHandler *handlers.ServerHandler,
	gameHandler *handlers.GameHandler,
	cardHandler *handlers.CardHandler,
	hub *services.Hub,
	gameService *services.GameService,
	authService *services.AuthService,
) {
	api := router.Group("/api")
	{
		api.POST("/servers", serverHandler.CreateServer)
		api.POST("/servers/:serverId/games", serverHandler.CreateGame)

		// Public game state and invite lookup
		api.GET("/games/:gameId", gameHandler.GetGameState)
		// Not under /games: a static segment there would clash with the
		// :gameId wildcard in gin's route tree.
		api.GET("/host/:hostToken", gameHandler.GetHostView)
		api.GET("/invites/:token", cardHandler.GetInviteInfo)
		api.POST("/invites/:token/claim", cardHandler.ClaimInvite)

		// Host-only game control
		host := api.Group("/games/:gameId")
		host.Use(middleware.HostAuth(gameService))
		{
			host.POST("/start", gameHandler.StartGame)
			host.POST("/draw", gameHandler.DrawNumber)
			host.POST("/end", gameHandler.EndGame)
			host.PATCH("/awards", gameHandler.UpdateAwardRange)
		}

		// Player claims, session-token protected
		player := api.Group("/games/:gameId")
		player.Use(middleware.PlayerAuth(authService))
		{
			player.POST("/bingo", gameHandler.ClaimBingo)
			player.POST("/reach", gameHandler.NotifyReach)
			player.POST("/roulette", gameHandler.ClaimRoulette)
		}

		me := api.Group("/cards")
		me.Use(middleware.PlayerAuth(authService))
		{
			me.GET("/me", cardHandler.GetMyCard)
		}
	}

	// Real-time channel. Subscription is gated before the upgrade: a player
	// must present a session token whose game matches, a host the game's
	// host token. Unauthorized attempts are rejected with a status code, not
	// silently dropped.
	router.GET("/ws/:gameId", func(c *gin.Context) {
		gameID64, err := strconv.ParseUint(c.Param("gameId"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			return
		}
		gameID := uint(gameID64)

		var userID uint
		var displayName string
		isHost := false

		if hostToken := c.Query("host_token"); hostToken != "" {
			game, err := gameService.GetGameByHostToken(hostToken)
			if err != nil || game.ID != gameID {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host token for this game"})
				return
			}
			isHost = true
		} else {
			claims, err := authService.VerifySession(c.Query("token"))
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session token"})
				return
			}
			if claims.GameID != gameID {
				c.JSON(http.StatusForbidden, gin.H{"error": "session does not match this game"})
				return
			}
			if !gameService.IsParticipant(gameID, claims.UserID) {
				c.JSON(http.StatusForbidden, gin.H{"error": "user is not a participant in this game"})
				return
			}
			userID = claims.UserID
			displayName = claims.DisplayName
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("websocket upgrade failed for game %d: %v", gameID, err)
			return
		}

		hub.RegisterClient(conn, gameID, userID, displayName, isHost)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
