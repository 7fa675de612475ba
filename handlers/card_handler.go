package handlers

import (
	"net/http"

	"garabingo/services"

	"github.com/gin-gonic/gin"
)

type CardHandler struct {
	cardService *services.CardService
	hub         *services.Hub
}

func NewCardHandler(cardService *services.CardService, hub *services.Hub) *CardHandler {
	return &CardHandler{cardService: cardService, hub: hub}
}

type ClaimInviteRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// GetInviteInfo lets a client validate an invite before redeeming it.
func (h *CardHandler) GetInviteInfo(c *gin.Context) {
	info, err := h.cardService.GetInviteInfo(c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ClaimInvite redeems an invite token: a new display name joins the game and
// gets a card, a known one re-attaches to its existing card. Both receive a
// fresh session credential.
func (h *CardHandler) ClaimInvite(c *gin.Context) {
	var req ClaimInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.cardService.ClaimInvite(c.Param("token"), req.DisplayName, h.hub)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reattached {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetMyCard returns the authenticated participant's card.
func (h *CardHandler) GetMyCard(c *gin.Context) {
	card, err := h.cardService.GetMyCard(c.GetUint("user_id"), c.GetUint("game_id"), c.GetUint("card_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}
