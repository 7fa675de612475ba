package middleware

import (
	"net/http"
	"strconv"

	"garabingo/services"

	"github.com/gin-gonic/gin"
)

// HostAuth validates the X-Host-Token header against the game addressed by
// the route's gameId parameter.
func HostAuth(games *services.GameService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Host-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing host token"})
			return
		}

		game, err := games.GetGameByHostToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid host token"})
			return
		}

		if param := c.Param("gameId"); param != "" {
			gameID, err := strconv.ParseUint(param, 10, 32)
			if err != nil || uint(gameID) != game.ID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "host token does not match this game"})
				return
			}
		}

		c.Set("game_id", game.ID)
		c.Next()
	}
}
