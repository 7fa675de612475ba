package services

import (
	mrand "math/rand"
	"time"

	"garabingo/errs"
	"garabingo/models"
	"garabingo/utils/logger"

	"gorm.io/gorm"
)

type CardService struct {
	db   *gorm.DB
	auth *AuthService
}

func NewCardService(db *gorm.DB, auth *AuthService) *CardService {
	return &CardService{db: db, auth: auth}
}

// ClaimInviteResult carries the issued credential and the participant's card.
// Reattached is true when the display name already belonged to this game and
// the redemption re-issued the existing card instead of creating a new one.
type ClaimInviteResult struct {
	Session    string       `json:"session"`
	Card       *models.Card `json:"card"`
	UserID     uint         `json:"user_id"`
	GameID     uint         `json:"game_id"`
	Reattached bool         `json:"reattached"`
}

// InviteInfo describes an invite without redeeming it.
type InviteInfo struct {
	GameID     uint      `json:"game_id"`
	GameStatus string    `json:"game_status"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
}

// generateCells produces the 25 cells of a fresh card. Column c draws five
// distinct numbers from the band [15c+1, 15c+15]. The (2,2) cell keeps its
// number but is treated as permanently marked by the evaluator.
func generateCells(cardID uint) []models.CardCell {
	cells := make([]models.CardCell, 0, 25)
	for col := 0; col < 5; col++ {
		base := col*15 + 1
		perm := mrand.Perm(15)
		for row := 0; row < 5; row++ {
			cells = append(cells, models.CardCell{
				CardID: cardID,
				Row:    row,
				Col:    col,
				Number: base + perm[row],
			})
		}
	}
	return cells
}

// ClaimInvite redeems an invite token for a display name. Two branches of one
// operation: an unknown name creates the user, participant and card
// atomically; a name already present in the game is a re-attach and gets the
// existing card with a fresh credential. The participant display-name unique
// index is the race guard for concurrent redemptions of the same name — the
// loser retries and lands in the re-attach branch.
func (s *CardService) ClaimInvite(token, displayName string, hub *Hub) (*ClaimInviteResult, error) {
	if displayName == "" {
		return nil, errs.Validationf("display name is required")
	}

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		var invite models.CardInvite
		if err := s.db.Preload("Game").Where("token = ?", token).First(&invite).Error; err != nil {
			return nil, errs.NotFoundf("invite not found")
		}
		if time.Now().After(invite.ExpiresAt) {
			return nil, errs.Validationf("invite has expired")
		}
		if invite.Game.Status == models.StatusEnded {
			return nil, errs.InvalidStatef("cannot join a game that has ended")
		}

		// Re-attach branch: the name already belongs to this game.
		var participant models.GameParticipant
		err := s.db.Where("game_id = ? AND display_name = ?", invite.GameID, displayName).
			First(&participant).Error
		if err == nil {
			return s.reattach(&invite, &participant)
		}

		// Create branch: user, participant, card and cells in one unit.
		result, err := s.createParticipant(&invite, displayName)
		if err == nil {
			hub.BroadcastToGame(invite.GameID, EventParticipantJoined, map[string]interface{}{
				"game_id":      invite.GameID,
				"user_id":      result.UserID,
				"display_name": displayName,
			})
			return result, nil
		}
		if isUniqueViolation(err) {
			// Lost the name race; the next pass finds the winner's
			// participant and re-attaches.
			logger.Debugf("display name conflict on game %d, retrying (attempt %d)", invite.GameID, attempt+1)
			continue
		}
		return nil, err
	}

	return nil, errs.Conflictf("display name '%s' is already taken in this game", displayName)
}

func (s *CardService) reattach(invite *models.CardInvite, participant *models.GameParticipant) (*ClaimInviteResult, error) {
	var card models.Card
	if err := s.db.Preload("Cells").
		Where("game_id = ? AND user_id = ?", invite.GameID, participant.UserID).
		First(&card).Error; err != nil {
		return nil, errs.Internalf("participant %d has no card: %v", participant.ID, err)
	}

	session, err := s.auth.IssueSession(participant.UserID, invite.GameID, card.ID, participant.DisplayName)
	if err != nil {
		return nil, err
	}

	return &ClaimInviteResult{
		Session:    session,
		Card:       &card,
		UserID:     participant.UserID,
		GameID:     invite.GameID,
		Reattached: true,
	}, nil
}

func (s *CardService) createParticipant(invite *models.CardInvite, displayName string) (*ClaimInviteResult, error) {
	var card models.Card
	var user models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user = models.User{DisplayName: displayName}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		participant := models.GameParticipant{
			GameID:      invite.GameID,
			UserID:      user.ID,
			DisplayName: displayName,
			JoinedAt:    time.Now(),
		}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}

		card = models.Card{
			GameID:   invite.GameID,
			UserID:   user.ID,
			IssuedAt: time.Now(),
		}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}

		cells := generateCells(card.ID)
		if err := tx.Create(&cells).Error; err != nil {
			return err
		}
		card.Cells = cells
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.auth.IssueSession(user.ID, invite.GameID, card.ID, displayName)
	if err != nil {
		return nil, err
	}

	logger.Infof("participant %s joined game %d", displayName, invite.GameID)
	return &ClaimInviteResult{
		Session: session,
		Card:    &card,
		UserID:  user.ID,
		GameID:  invite.GameID,
	}, nil
}

// GetInviteInfo looks an invite up without redeeming it, so clients can
// validate a saved session before re-joining.
func (s *CardService) GetInviteInfo(token string) (*InviteInfo, error) {
	var invite models.CardInvite
	if err := s.db.Preload("Game").Where("token = ?", token).First(&invite).Error; err != nil {
		return nil, errs.NotFoundf("invite not found")
	}

	return &InviteInfo{
		GameID:     invite.GameID,
		GameStatus: invite.Game.Status,
		ExpiresAt:  invite.ExpiresAt,
		Expired:    time.Now().After(invite.ExpiresAt),
	}, nil
}

// GetMyCard returns the authenticated participant's card with cells.
func (s *CardService) GetMyCard(userID, gameID, cardID uint) (*models.Card, error) {
	var card models.Card
	if err := s.db.Preload("Cells").
		Where("id = ? AND game_id = ? AND user_id = ?", cardID, gameID, userID).
		First(&card).Error; err != nil {
		return nil, errs.NotFoundf("card not found")
	}
	return &card, nil
}
