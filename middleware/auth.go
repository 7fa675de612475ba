package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"garabingo/services"

	"github.com/gin-gonic/gin"
)

// PlayerAuth validates the Bearer session token issued on invite redemption
// and rejects credentials whose embedded game does not match the route's
// gameId parameter.
func PlayerAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		claims, err := auth.VerifySession(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session token"})
			return
		}

		if param := c.Param("gameId"); param != "" {
			gameID, err := strconv.ParseUint(param, 10, 32)
			if err != nil || uint(gameID) != claims.GameID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session does not match this game"})
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("game_id", claims.GameID)
		c.Set("card_id", claims.CardID)
		c.Set("display_name", claims.DisplayName)
		c.Next()
	}
}
