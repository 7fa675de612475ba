package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"garabingo/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// One connection serializes concurrent transactions against the shared
	// in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

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
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

func newTestServices(t *testing.T, opts GameServiceOptions) (*gorm.DB, *GameService, *CardService) {
	t.Helper()
	db := newTestDB(t)
	games := NewGameService(db, opts)
	cards := NewCardService(db, NewAuthService("test-secret"))
	return db, games, cards
}

// newWaitingGame creates a server and a game with its invite, returning both.
func newWaitingGame(t *testing.T, db *gorm.DB, games *GameService) (*models.Game, *models.CardInvite) {
	t.Helper()

	server := models.Server{Name: "test server"}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("create server: %v", err)
	}

	game, invite, err := games.CreateGame(server.ID)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game, invite
}

// joinPlayer redeems the invite for the given display name.
func joinPlayer(t *testing.T, cards *CardService, invite *models.CardInvite, name string) *ClaimInviteResult {
	t.Helper()

	result, err := cards.ClaimInvite(invite.Token, name, nil)
	if err != nil {
		t.Fatalf("claim invite for %s: %v", name, err)
	}
	return result
}

// startRunning force-starts the game so roster setup stays optional.
func startRunning(t *testing.T, db *gorm.DB, games *GameService, gameID uint) {
	t.Helper()

	if _, err := games.StartGame(gameID, true, nil); err != nil {
		t.Fatalf("start game: %v", err)
	}
}

// insertDraws records the given numbers as draws in order, bypassing the
// sequencer so tests control exactly which numbers are marked.
func insertDraws(t *testing.T, db *gorm.DB, gameID uint, numbers ...int) {
	t.Helper()

	var last models.GameDraw
	order := 0
	if err := db.Where("game_id = ?", gameID).Order("draw_order DESC").First(&last).Error; err == nil {
		order = last.DrawOrder
	}

	for _, n := range numbers {
		order++
		draw := models.GameDraw{GameID: gameID, Number: n, DrawOrder: order, DrawnAt: time.Now()}
		if err := db.Create(&draw).Error; err != nil {
			t.Fatalf("insert draw %d: %v", n, err)
		}
	}
}

// rigCard rewrites a whole card deterministically: row 0 gets the given
// numbers and rows 1-4 get fixed fillers (col*15+10+row) that never collide
// with typical row-0 scenarios, so only row 0 reacts to the drawn numbers.
func rigCard(t *testing.T, db *gorm.DB, cardID uint, row0 [5]int) {
	t.Helper()

	for col := 0; col < 5; col++ {
		for row := 0; row < 5; row++ {
			n := col*15 + 10 + row
			if row == 0 {
				n = row0[col]
			}
			err := db.Model(&models.CardCell{}).
				Where("card_id = ? AND row = ? AND col = ?", cardID, row, col).
				Update("number", n).Error
			if err != nil {
				t.Fatalf("rig card %d row %d col %d: %v", cardID, row, col, err)
			}
		}
	}
}

func intPtr(n int) *int { return &n }
