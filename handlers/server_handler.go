package handlers

import (
	"net/http"
	"strconv"

	"garabingo/services"

	"github.com/gin-gonic/gin"
)

type ServerHandler struct {
	serverService *services.ServerService
	gameService   *services.GameService
}

func NewServerHandler(serverService *services.ServerService, gameService *services.GameService) *ServerHandler {
	return &ServerHandler{serverService: serverService, gameService: gameService}
}

type CreateServerRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *ServerHandler) CreateServer(c *gin.Context) {
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	server, err := h.serverService.CreateServer(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, server)
}

// CreateGame creates a game under a server, returning the host credential
// and the invite token exactly once.
func (h *ServerHandler) CreateGame(c *gin.Context) {
	serverID, err := strconv.ParseUint(c.Param("serverId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
		return
	}

	game, invite, err := h.gameService.CreateGame(uint(serverID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":           game.ID,
		"server_id":    game.ServerID,
		"status":       game.Status,
		"started_at":   game.StartedAt,
		"ended_at":     game.EndedAt,
		"award_min":    game.AwardMin,
		"award_max":    game.AwardMax,
		"host_token":   game.HostToken,
		"invite_token": invite.Token,
	})
}
