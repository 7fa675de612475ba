package handlers

import (
	"net/http"

	"garabingo/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameService *services.GameService
	hub         *services.Hub
}

func NewGameHandler(gameService *services.GameService, hub *services.Hub) *GameHandler {
	return &GameHandler{gameService: gameService, hub: hub}
}

type StartGameRequest struct {
	// Force starts the game even with an empty roster.
	Force bool `json:"force"`
}

type UpdateAwardRangeRequest struct {
	AwardMin *int `json:"award_min"`
	AwardMax *int `json:"award_max"`
}

type ClaimRouletteRequest struct {
	Award int `json:"award" binding:"required,min=1"`
}

// GetGameState is the public snapshot endpoint.
func (h *GameHandler) GetGameState(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	state, err := h.gameService.GetGameState(gameID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetHostView resolves a host token to its game plus the invite token.
func (h *GameHandler) GetHostView(c *gin.Context) {
	view, err := h.gameService.GetHostView(c.Param("hostToken"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *GameHandler) StartGame(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	var req StartGameRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	game, err := h.gameService.StartGame(gameID, req.Force, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":    game.ID,
		"status":     game.Status,
		"started_at": game.StartedAt,
	})
}

func (h *GameHandler) UpdateAwardRange(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	var req UpdateAwardRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.UpdateAwardRange(gameID, req.AwardMin, req.AwardMax)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":   game.ID,
		"award_min": game.AwardMin,
		"award_max": game.AwardMax,
	})
}

func (h *GameHandler) DrawNumber(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	draw, err := h.gameService.DrawNumber(gameID, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id": gameID,
		"draw": services.DrawnNumber{
			Number:    draw.Number,
			DrawOrder: draw.DrawOrder,
			DrawnAt:   draw.DrawnAt,
		},
	})
}

func (h *GameHandler) ClaimBingo(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint("user_id")
	cardID := c.GetUint("card_id")

	winner, err := h.gameService.ClaimBingo(gameID, userID, cardID, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "winner": winner})
}

func (h *GameHandler) NotifyReach(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint("user_id")
	cardID := c.GetUint("card_id")

	reach, err := h.gameService.NotifyReach(gameID, userID, cardID, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reach": reach})
}

func (h *GameHandler) ClaimRoulette(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint("user_id")

	var req ClaimRouletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, remaining, err := h.gameService.ClaimRoulette(gameID, userID, req.Award, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"result":           result,
		"remaining_awards": remaining,
	})
}

func (h *GameHandler) EndGame(c *gin.Context) {
	gameID, ok := gameIDParam(c)
	if !ok {
		return
	}

	game, err := h.gameService.EndGame(gameID, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":  game.ID,
		"status":   game.Status,
		"ended_at": game.EndedAt,
	})
}
