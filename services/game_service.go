package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	mrand "math/rand"
	"strings"
	"time"

	"garabingo/errs"
	"garabingo/models"
	"garabingo/utils/logger"

	"gorm.io/gorm"
)

// Draw pool bounds. Numbers are drawn from 1..drawPoolSize without repetition.
const drawPoolSize = 75

const maxCommitRetries = 3

type GameServiceOptions struct {
	// RequireAwardRange refuses to start a game before the award pool is
	// configured. Product policy, so it is a flag rather than hard-coded.
	RequireAwardRange bool
	// InviteTTL is the lifetime of the invite issued with a new game.
	InviteTTL time.Duration
}

type GameService struct {
	db   *gorm.DB
	opts GameServiceOptions
}

func NewGameService(db *gorm.DB, opts GameServiceOptions) *GameService {
	if opts.InviteTTL == 0 {
		opts.InviteTTL = 24 * time.Hour
	}
	return &GameService{db: db, opts: opts}
}

type DrawnNumber struct {
	Number    int       `json:"number"`
	DrawOrder int       `json:"draw_order"`
	DrawnAt   time.Time `json:"drawn_at"`
}

type Winner struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

type Reach struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ReachedAt   time.Time `json:"reached_at"`
}

type RouletteOutcome struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Award       int       `json:"award"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

type GameState struct {
	Game             GameInfo      `json:"game"`
	ParticipantCount int64         `json:"participant_count"`
	DrawnNumbers     []DrawnNumber `json:"drawn_numbers"`
	Winners          []Winner      `json:"winners"`
}

type GameInfo struct {
	ID        uint       `json:"id"`
	ServerID  uint       `json:"server_id"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	AwardMin  *int       `json:"award_min"`
	AwardMax  *int       `json:"award_max"`
}

type HostView struct {
	GameState
	GameID      uint   `json:"game_id"`
	InviteToken string `json:"invite_token"`
}

// randomToken returns n random bytes hex-encoded. A short entropy read is an
// error, never a truncated token.
func randomToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// isUniqueViolation detects a unique-constraint conflict across the dialects
// the service runs against.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

// CreateGame creates a game in the waiting state together with its host
// credential and a reusable invite. Token collisions are retried a bounded
// number of times.
func (s *GameService) CreateGame(serverID uint) (*models.Game, *models.CardInvite, error) {
	var server models.Server
	if err := s.db.First(&server, serverID).Error; err != nil {
		return nil, nil, errs.NotFoundf("server %d not found", serverID)
	}

	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		hostToken, err := randomToken(16)
		if err != nil {
			return nil, nil, errs.Internalf("failed to generate host token: %v", err)
		}
		inviteToken, err := randomToken(16)
		if err != nil {
			return nil, nil, errs.Internalf("failed to generate invite token: %v", err)
		}

		game := models.Game{
			ServerID:  serverID,
			Status:    models.StatusWaiting,
			HostToken: hostToken,
		}
		invite := models.CardInvite{
			Token:     inviteToken,
			ExpiresAt: time.Now().Add(s.opts.InviteTTL),
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&game).Error; err != nil {
				return err
			}
			invite.GameID = game.ID
			return tx.Create(&invite).Error
		})
		if err == nil {
			logger.Infof("created game %d for server %d", game.ID, serverID)
			return &game, &invite, nil
		}
		if isUniqueViolation(err) {
			lastErr = err
			continue
		}
		return nil, nil, errs.Internalf("failed to create game: %v", err)
	}

	return nil, nil, errs.Internalf("failed to create game after %d attempts: %v", maxCommitRetries, lastErr)
}

// GetGameState returns the public snapshot: status, participant count, draw
// history in draw order and the winner list.
func (s *GameService) GetGameState(gameID uint) (*GameState, error) {
	var game models.Game
	if err := s.db.First(&game, gameID).Error; err != nil {
		return nil, errs.NotFoundf("game %d not found", gameID)
	}

	var participantCount int64
	if err := s.db.Model(&models.GameParticipant{}).
		Where("game_id = ?", gameID).Count(&participantCount).Error; err != nil {
		return nil, errs.Internalf("failed to count participants: %v", err)
	}

	var draws []models.GameDraw
	if err := s.db.Where("game_id = ?", gameID).
		Order("draw_order ASC").Find(&draws).Error; err != nil {
		return nil, errs.Internalf("failed to load draws: %v", err)
	}

	winners, err := s.getWinners(s.db, gameID)
	if err != nil {
		return nil, err
	}

	state := &GameState{
		Game: GameInfo{
			ID:        game.ID,
			ServerID:  game.ServerID,
			Status:    game.Status,
			StartedAt: game.StartedAt,
			EndedAt:   game.EndedAt,
			AwardMin:  game.AwardMin,
			AwardMax:  game.AwardMax,
		},
		ParticipantCount: participantCount,
		DrawnNumbers:     make([]DrawnNumber, 0, len(draws)),
		Winners:          winners,
	}
	for _, d := range draws {
		state.DrawnNumbers = append(state.DrawnNumbers, DrawnNumber{
			Number:    d.Number,
			DrawOrder: d.DrawOrder,
			DrawnAt:   d.DrawnAt,
		})
	}
	return state, nil
}

func (s *GameService) getWinners(db *gorm.DB, gameID uint) ([]Winner, error) {
	var participants []models.GameParticipant
	if err := db.Where("game_id = ? AND won_at IS NOT NULL", gameID).
		Order("won_at ASC").Find(&participants).Error; err != nil {
		return nil, errs.Internalf("failed to load winners: %v", err)
	}

	winners := make([]Winner, 0, len(participants))
	for _, p := range participants {
		winners = append(winners, Winner{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			ClaimedAt:   *p.WonAt,
		})
	}
	return winners, nil
}

// GetGameByHostToken resolves the host credential to its game.
func (s *GameService) GetGameByHostToken(hostToken string) (*models.Game, error) {
	var game models.Game
	if err := s.db.Where("host_token = ?", hostToken).First(&game).Error; err != nil {
		return nil, errs.NotFoundf("invalid host token")
	}
	return &game, nil
}

// GetHostView returns the host's view: game state plus the invite token.
func (s *GameService) GetHostView(hostToken string) (*HostView, error) {
	game, err := s.GetGameByHostToken(hostToken)
	if err != nil {
		return nil, err
	}

	var invite models.CardInvite
	if err := s.db.Where("game_id = ?", game.ID).First(&invite).Error; err != nil {
		return nil, errs.NotFoundf("invite not found for game %d", game.ID)
	}

	state, err := s.GetGameState(game.ID)
	if err != nil {
		return nil, err
	}

	return &HostView{
		GameState:   *state,
		GameID:      game.ID,
		InviteToken: invite.Token,
	}, nil
}

// StartGame transitions waiting -> running. When the award-range policy is
// active the pool must be configured first, and an empty roster is refused
// unless force is set.
func (s *GameService) StartGame(gameID uint, force bool, hub *Hub) (*models.Game, error) {
	var game models.Game

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&game, gameID).Error; err != nil {
			return errs.NotFoundf("game %d not found", gameID)
		}
		if game.Status != models.StatusWaiting {
			return errs.InvalidStatef("cannot start game in status '%s'", game.Status)
		}
		if s.opts.RequireAwardRange && (game.AwardMin == nil || game.AwardMax == nil) {
			return errs.Validationf("award range must be configured before starting the game")
		}

		if !force {
			var count int64
			if err := tx.Model(&models.GameParticipant{}).
				Where("game_id = ?", gameID).Count(&count).Error; err != nil {
				return errs.Internalf("failed to count participants: %v", err)
			}
			if count == 0 {
				return errs.Validationf("cannot start a game with no participants")
			}
		}

		now := time.Now()
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ?", gameID, models.StatusWaiting).
			Updates(map[string]interface{}{"status": models.StatusRunning, "started_at": now})
		if res.Error != nil {
			return errs.Internalf("failed to start game: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent transition won; it may have gone to running or
			// straight to ended.
			return errs.InvalidStatef("game has already left the waiting state")
		}
		game.Status = models.StatusRunning
		game.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	hub.BroadcastToGame(gameID, EventGameStarted, map[string]interface{}{
		"game_id":    gameID,
		"started_at": game.StartedAt,
	})
	return &game, nil
}

// UpdateAwardRange configures the roulette award pool. Only allowed while the
// game is still waiting; bounds come both-or-neither.
func (s *GameService) UpdateAwardRange(gameID uint, awardMin, awardMax *int) (*models.Game, error) {
	if (awardMin == nil) != (awardMax == nil) {
		return nil, errs.Validationf("award_min and award_max must be set together")
	}
	if awardMin != nil {
		if *awardMin < 1 || *awardMax < *awardMin {
			return nil, errs.Validationf("invalid award range [%d, %d]", *awardMin, *awardMax)
		}
	}

	var game models.Game
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&game, gameID).Error; err != nil {
			return errs.NotFoundf("game %d not found", gameID)
		}
		if game.Status != models.StatusWaiting {
			return errs.InvalidStatef("cannot update award range in status '%s'", game.Status)
		}

		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ?", gameID, models.StatusWaiting).
			Updates(map[string]interface{}{"award_min": awardMin, "award_max": awardMax})
		if res.Error != nil {
			return errs.Internalf("failed to update award range: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.InvalidStatef("cannot update award range in status '%s'", game.Status)
		}
		game.AwardMin = awardMin
		game.AwardMax = awardMax
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// DrawNumber picks a uniformly random undrawn number and commits it with the
// next draw order. The unique indexes on (game, number) and (game, draw_order)
// are the reserve-then-verify guard: a concurrent draw that reached the same
// slot first makes the commit fail, and the losing attempt retries with fresh
// state up to maxCommitRetries times.
func (s *GameService) DrawNumber(gameID uint, hub *Hub) (*models.GameDraw, error) {
	var lastErr error

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		var draw models.GameDraw

		err := s.db.Transaction(func(tx *gorm.DB) error {
			var game models.Game
			if err := tx.First(&game, gameID).Error; err != nil {
				return errs.NotFoundf("game %d not found", gameID)
			}
			if game.Status != models.StatusRunning {
				return errs.InvalidStatef("cannot draw number in game status '%s'", game.Status)
			}

			var existing []models.GameDraw
			if err := tx.Where("game_id = ?", gameID).Find(&existing).Error; err != nil {
				return errs.Internalf("failed to load draws: %v", err)
			}
			if len(existing) >= drawPoolSize {
				return errs.Exhaustedf("all %d numbers have been drawn", drawPoolSize)
			}

			drawn := make(map[int]bool, len(existing))
			nextOrder := 1
			for _, d := range existing {
				drawn[d.Number] = true
				if d.DrawOrder >= nextOrder {
					nextOrder = d.DrawOrder + 1
				}
			}

			undrawn := make([]int, 0, drawPoolSize-len(existing))
			for n := 1; n <= drawPoolSize; n++ {
				if !drawn[n] {
					undrawn = append(undrawn, n)
				}
			}

			draw = models.GameDraw{
				GameID:    gameID,
				Number:    undrawn[mrand.Intn(len(undrawn))],
				DrawOrder: nextOrder,
				DrawnAt:   time.Now(),
			}
			return tx.Create(&draw).Error
		})
		if err == nil {
			hub.BroadcastToGame(gameID, EventNumberDrawn, map[string]interface{}{
				"game_id": gameID,
				"draw": DrawnNumber{
					Number:    draw.Number,
					DrawOrder: draw.DrawOrder,
					DrawnAt:   draw.DrawnAt,
				},
			})
			return &draw, nil
		}
		if isUniqueViolation(err) {
			lastErr = err
			logger.Debugf("draw conflict on game %d, retrying (attempt %d)", gameID, attempt+1)
			continue
		}
		return nil, err
	}

	return nil, errs.Conflictf("failed to draw number after %d attempts: %v", maxCommitRetries, lastErr)
}

// ClaimBingo adjudicates a player's win claim against the live drawn set.
// The won_at IS NULL condition at commit time collapses duplicate claims for
// the same participant into one success.
func (s *GameService) ClaimBingo(gameID, userID, cardID uint, hub *Hub) (*Winner, error) {
	var winner Winner

	err := s.db.Transaction(func(tx *gorm.DB) error {
		participant, cells, err := s.loadClaimContext(tx, gameID, userID, cardID)
		if err != nil {
			return err
		}
		if participant.WonAt != nil {
			return errs.Conflictf("you have already claimed bingo")
		}

		var draws []models.GameDraw
		if err := tx.Where("game_id = ?", gameID).Find(&draws).Error; err != nil {
			return errs.Internalf("failed to load draws: %v", err)
		}

		result := EvaluateCard(cells, drawnSet(draws))
		if !result.Win {
			return errs.Validationf("no winning pattern found")
		}

		now := time.Now()
		res := tx.Model(&models.GameParticipant{}).
			Where("id = ? AND won_at IS NULL", participant.ID).
			Update("won_at", now)
		if res.Error != nil {
			return errs.Internalf("failed to record win: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Conflictf("you have already claimed bingo")
		}

		winner = Winner{
			UserID:      userID,
			DisplayName: participant.DisplayName,
			ClaimedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("bingo claimed in game %d by %s", gameID, winner.DisplayName)
	hub.BroadcastToGame(gameID, EventBingoClaimed, map[string]interface{}{
		"game_id": gameID,
		"winner":  winner,
	})
	return &winner, nil
}

// NotifyReach records that a player is one number away from winning.
// Informational only; it never blocks a later win claim.
func (s *GameService) NotifyReach(gameID, userID, cardID uint, hub *Hub) (*Reach, error) {
	var reach Reach

	err := s.db.Transaction(func(tx *gorm.DB) error {
		participant, cells, err := s.loadClaimContext(tx, gameID, userID, cardID)
		if err != nil {
			return err
		}
		if participant.ReachedAt != nil {
			return errs.Conflictf("you have already notified reach")
		}

		var draws []models.GameDraw
		if err := tx.Where("game_id = ?", gameID).Find(&draws).Error; err != nil {
			return errs.Internalf("failed to load draws: %v", err)
		}

		result := EvaluateCard(cells, drawnSet(draws))
		if !result.Reach {
			return errs.Validationf("no reach pattern found")
		}

		now := time.Now()
		res := tx.Model(&models.GameParticipant{}).
			Where("id = ? AND reached_at IS NULL", participant.ID).
			Update("reached_at", now)
		if res.Error != nil {
			return errs.Internalf("failed to record reach: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Conflictf("you have already notified reach")
		}

		reach = Reach{
			UserID:      userID,
			DisplayName: participant.DisplayName,
			ReachedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hub.BroadcastToGame(gameID, EventReachNotified, map[string]interface{}{
		"game_id": gameID,
		"reach":   reach,
	})
	return &reach, nil
}

// loadClaimContext validates the shared preconditions of win and reach
// claims: running game, existing participant, card owned by that participant.
func (s *GameService) loadClaimContext(tx *gorm.DB, gameID, userID, cardID uint) (*models.GameParticipant, []models.CardCell, error) {
	var game models.Game
	if err := tx.First(&game, gameID).Error; err != nil {
		return nil, nil, errs.NotFoundf("game %d not found", gameID)
	}
	if game.Status != models.StatusRunning {
		return nil, nil, errs.InvalidStatef("cannot claim in game status '%s'", game.Status)
	}

	var participant models.GameParticipant
	if err := tx.Where("game_id = ? AND user_id = ?", gameID, userID).
		First(&participant).Error; err != nil {
		return nil, nil, errs.NotFoundf("user is not a participant in this game")
	}

	var card models.Card
	if err := tx.Where("id = ? AND game_id = ? AND user_id = ?", cardID, gameID, userID).
		First(&card).Error; err != nil {
		return nil, nil, errs.NotFoundf("card not found or does not belong to user")
	}

	var cells []models.CardCell
	if err := tx.Where("card_id = ?", card.ID).Find(&cells).Error; err != nil {
		return nil, nil, errs.Internalf("failed to load card cells: %v", err)
	}

	return &participant, cells, nil
}

// ClaimRoulette hands a confirmed winner the award they spun. The unique
// index on (game, award) makes concurrent claims for the same value resolve
// to exactly one success; (game, participant) caps each winner at one award.
func (s *GameService) ClaimRoulette(gameID, userID uint, award int, hub *Hub) (*RouletteOutcome, []int, error) {
	var outcome RouletteOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			return errs.NotFoundf("game %d not found", gameID)
		}
		if game.AwardMin == nil || game.AwardMax == nil {
			return errs.InvalidStatef("award range is not configured for this game")
		}
		if award < *game.AwardMin || award > *game.AwardMax {
			return errs.Validationf("award %d is outside the range [%d, %d]", award, *game.AwardMin, *game.AwardMax)
		}

		var participant models.GameParticipant
		if err := tx.Where("game_id = ? AND user_id = ?", gameID, userID).
			First(&participant).Error; err != nil {
			return errs.NotFoundf("user is not a participant in this game")
		}
		if participant.WonAt == nil {
			return errs.Validationf("only confirmed winners can claim an award")
		}

		var existing models.RouletteResult
		if err := tx.Where("game_id = ? AND participant_id = ?", gameID, participant.ID).
			First(&existing).Error; err == nil {
			return errs.Conflictf("you have already claimed an award")
		}

		result := models.RouletteResult{
			GameID:        gameID,
			ParticipantID: participant.ID,
			Award:         award,
			ClaimedAt:     time.Now(),
		}
		if err := tx.Create(&result).Error; err != nil {
			if isUniqueViolation(err) {
				// Two indexes can lose this race. Re-check outside the
				// transaction (it is aborted on postgres) to report the
				// right one.
				var mine models.RouletteResult
				if s.db.Where("game_id = ? AND participant_id = ?", gameID, participant.ID).
					First(&mine).Error == nil {
					return errs.Conflictf("you have already claimed an award")
				}
				return errs.Conflictf("award %d has already been claimed", award)
			}
			return errs.Internalf("failed to record award claim: %v", err)
		}

		outcome = RouletteOutcome{
			UserID:      userID,
			DisplayName: participant.DisplayName,
			Award:       award,
			ClaimedAt:   result.ClaimedAt,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	remaining, err := s.remainingAwards(gameID)
	if err != nil {
		return nil, nil, err
	}

	hub.BroadcastToGame(gameID, EventRouletteClaimed, map[string]interface{}{
		"game_id": gameID,
		"result":  outcome,
	})
	return &outcome, remaining, nil
}

// remainingAwards lists the award values still unclaimed in the game's pool.
func (s *GameService) remainingAwards(gameID uint) ([]int, error) {
	var game models.Game
	if err := s.db.First(&game, gameID).Error; err != nil {
		return nil, errs.NotFoundf("game %d not found", gameID)
	}
	if game.AwardMin == nil || game.AwardMax == nil {
		return []int{}, nil
	}

	var results []models.RouletteResult
	if err := s.db.Where("game_id = ?", gameID).Find(&results).Error; err != nil {
		return nil, errs.Internalf("failed to load award claims: %v", err)
	}

	claimed := make(map[int]bool, len(results))
	for _, r := range results {
		claimed[r.Award] = true
	}

	remaining := make([]int, 0, *game.AwardMax-*game.AwardMin+1)
	for a := *game.AwardMin; a <= *game.AwardMax; a++ {
		if !claimed[a] {
			remaining = append(remaining, a)
		}
	}
	return remaining, nil
}

// EndGame transitions to the terminal ended state from waiting or running.
func (s *GameService) EndGame(gameID uint, hub *Hub) (*models.Game, error) {
	var game models.Game

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&game, gameID).Error; err != nil {
			return errs.NotFoundf("game %d not found", gameID)
		}
		if game.Status == models.StatusEnded {
			return errs.InvalidStatef("game has already ended")
		}

		now := time.Now()
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status <> ?", gameID, models.StatusEnded).
			Updates(map[string]interface{}{"status": models.StatusEnded, "ended_at": now})
		if res.Error != nil {
			return errs.Internalf("failed to end game: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.InvalidStatef("game has already ended")
		}
		game.Status = models.StatusEnded
		game.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	hub.BroadcastToGame(gameID, EventGameEnded, map[string]interface{}{
		"game_id":  gameID,
		"ended_at": game.EndedAt,
	})
	return &game, nil
}

// IsParticipant reports whether the user belongs to the game. Used by the
// hub's subscription gate.
func (s *GameService) IsParticipant(gameID, userID uint) bool {
	var count int64
	s.db.Model(&models.GameParticipant{}).
		Where("game_id = ? AND user_id = ?", gameID, userID).Count(&count)
	return count > 0
}
