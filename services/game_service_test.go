package services

import (
	"strings"
	"testing"

	"garabingo/errs"
	"garabingo/models"

	"golang.org/x/sync/errgroup"
)

func TestCreateGameIssuesCredentials(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)

	if game.Status != models.StatusWaiting {
		t.Fatalf("new game status = %s, want waiting", game.Status)
	}
	if game.HostToken == "" {
		t.Fatalf("expected a host token")
	}
	if invite.Token == "" || invite.GameID != game.ID {
		t.Fatalf("expected an invite bound to game %d, got %+v", game.ID, invite)
	}
}

func TestRandomTokenShape(t *testing.T) {
	first, err := randomToken(16)
	if err != nil {
		t.Fatalf("random token: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("token length = %d, want 32 hex chars", len(first))
	}

	second, err := randomToken(16)
	if err != nil {
		t.Fatalf("random token: %v", err)
	}
	if first == second {
		t.Fatalf("two tokens came out identical")
	}
}

func TestCreateGameUnknownServer(t *testing.T) {
	_, games, _ := newTestServices(t, GameServiceOptions{})

	_, _, err := games.CreateGame(9999)
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not-found for missing server, got %v", err)
	}
}

func TestStartGameTransitions(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	joinPlayer(t, cards, invite, "alice")

	started, err := games.StartGame(game.ID, false, nil)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	if started.Status != models.StatusRunning || started.StartedAt == nil {
		t.Fatalf("unexpected started game: %+v", started)
	}

	// Starting again is an invalid transition.
	if _, err := games.StartGame(game.ID, false, nil); !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("expected invalid-state on double start, got %v", err)
	}
}

func TestStartGameRequiresParticipants(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)

	if _, err := games.StartGame(game.ID, false, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error on empty roster, got %v", err)
	}

	// The force flag overrides the empty-roster check.
	if _, err := games.StartGame(game.ID, true, nil); err != nil {
		t.Fatalf("forced start: %v", err)
	}
}

func TestStartGameAwardRangePolicy(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{RequireAwardRange: true})
	game, invite := newWaitingGame(t, db, games)
	joinPlayer(t, cards, invite, "bob")

	if _, err := games.StartGame(game.ID, false, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error without award range, got %v", err)
	}

	if _, err := games.UpdateAwardRange(game.ID, intPtr(1), intPtr(10)); err != nil {
		t.Fatalf("update award range: %v", err)
	}
	if _, err := games.StartGame(game.ID, false, nil); err != nil {
		t.Fatalf("start after configuring awards: %v", err)
	}
}

func TestUpdateAwardRangeValidation(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)

	if _, err := games.UpdateAwardRange(game.ID, intPtr(5), nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for half-set bounds, got %v", err)
	}
	if _, err := games.UpdateAwardRange(game.ID, intPtr(7), intPtr(3)); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for inverted bounds, got %v", err)
	}

	startRunning(t, db, games, game.ID)
	if _, err := games.UpdateAwardRange(game.ID, intPtr(1), intPtr(5)); !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("expected invalid-state once running, got %v", err)
	}
}

func TestDrawNumberSequence(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)
	startRunning(t, db, games, game.ID)

	seenNumbers := make(map[int]bool)
	for i := 1; i <= 20; i++ {
		draw, err := games.DrawNumber(game.ID, nil)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if draw.DrawOrder != i {
			t.Fatalf("draw order = %d, want %d", draw.DrawOrder, i)
		}
		if draw.Number < 1 || draw.Number > 75 {
			t.Fatalf("number %d out of pool", draw.Number)
		}
		if seenNumbers[draw.Number] {
			t.Fatalf("number %d drawn twice", draw.Number)
		}
		seenNumbers[draw.Number] = true
	}
}

func TestDrawNumberWrongPhase(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)

	if _, err := games.DrawNumber(game.ID, nil); !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("expected invalid-state while waiting, got %v", err)
	}
}

func TestDrawNumberPoolExhaustion(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)
	startRunning(t, db, games, game.ID)

	for i := 0; i < 75; i++ {
		if _, err := games.DrawNumber(game.ID, nil); err != nil {
			t.Fatalf("draw %d: %v", i+1, err)
		}
	}

	_, err := games.DrawNumber(game.ID, nil)
	if !errs.IsKind(err, errs.KindExhausted) {
		t.Fatalf("expected exhausted on draw 76, got %v", err)
	}

	// Exhaustion must not have added a row.
	var count int64
	db.Model(&models.GameDraw{}).Where("game_id = ?", game.ID).Count(&count)
	if count != 75 {
		t.Fatalf("draw count after exhaustion = %d, want 75", count)
	}
}

func TestClaimBingoFlow(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	player := joinPlayer(t, cards, invite, "carol")
	rigCard(t, db, player.Card.ID, [5]int{3, 17, 34, 50, 70})
	startRunning(t, db, games, game.ID)

	// Not enough marks yet.
	insertDraws(t, db, game.ID, 3, 17, 34, 50)
	if _, err := games.ClaimBingo(game.ID, player.UserID, player.Card.ID, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected no-winning-pattern validation error, got %v", err)
	}

	insertDraws(t, db, game.ID, 70)
	winner, err := games.ClaimBingo(game.ID, player.UserID, player.Card.ID, nil)
	if err != nil {
		t.Fatalf("claim bingo: %v", err)
	}
	if winner.DisplayName != "carol" {
		t.Fatalf("winner = %+v", winner)
	}

	// The same participant cannot win twice.
	if _, err := games.ClaimBingo(game.ID, player.UserID, player.Card.ID, nil); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict on repeated claim, got %v", err)
	}

	state, err := games.GetGameState(game.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(state.Winners) != 1 || state.Winners[0].UserID != player.UserID {
		t.Fatalf("unexpected winner list: %+v", state.Winners)
	}
}

func TestClaimBingoConcurrentSameParticipant(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	player := joinPlayer(t, cards, invite, "dave")
	rigCard(t, db, player.Card.ID, [5]int{3, 17, 34, 50, 70})
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50, 70)

	var g errgroup.Group
	claimErrs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, claimErrs[i] = games.ClaimBingo(game.ID, player.UserID, player.Card.ID, nil)
			return nil
		})
	}
	g.Wait()

	successes, conflicts := 0, 0
	for _, err := range claimErrs {
		switch {
		case err == nil:
			successes++
		case errs.IsKind(err, errs.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 each", successes, conflicts)
	}
}

func TestClaimBingoDistinctWinners(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	p1 := joinPlayer(t, cards, invite, "erin")
	p2 := joinPlayer(t, cards, invite, "frank")
	rigCard(t, db, p1.Card.ID, [5]int{3, 17, 34, 50, 70})
	rigCard(t, db, p2.Card.ID, [5]int{3, 17, 34, 50, 70})
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50, 70)

	if _, err := games.ClaimBingo(game.ID, p1.UserID, p1.Card.ID, nil); err != nil {
		t.Fatalf("first winner: %v", err)
	}
	if _, err := games.ClaimBingo(game.ID, p2.UserID, p2.Card.ID, nil); err != nil {
		t.Fatalf("second winner: %v", err)
	}

	state, _ := games.GetGameState(game.ID)
	if len(state.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(state.Winners))
	}
}

func TestClaimBingoForeignCard(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	p1 := joinPlayer(t, cards, invite, "grace")
	p2 := joinPlayer(t, cards, invite, "henry")
	startRunning(t, db, games, game.ID)

	if _, err := games.ClaimBingo(game.ID, p1.UserID, p2.Card.ID, nil); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not-found for another player's card, got %v", err)
	}
}

func TestNotifyReachFlow(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	player := joinPlayer(t, cards, invite, "iris")
	rigCard(t, db, player.Card.ID, [5]int{3, 17, 34, 50, 70})
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50)

	reach, err := games.NotifyReach(game.ID, player.UserID, player.Card.ID, nil)
	if err != nil {
		t.Fatalf("notify reach: %v", err)
	}
	if reach.DisplayName != "iris" {
		t.Fatalf("reach = %+v", reach)
	}

	// Reach is recorded once.
	if _, err := games.NotifyReach(game.ID, player.UserID, player.Card.ID, nil); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict on repeated reach, got %v", err)
	}

	// Reach does not block the later win claim.
	insertDraws(t, db, game.ID, 70)
	if _, err := games.ClaimBingo(game.ID, player.UserID, player.Card.ID, nil); err != nil {
		t.Fatalf("claim bingo after reach: %v", err)
	}
}

func TestNotifyReachWithoutPattern(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	player := joinPlayer(t, cards, invite, "judy")
	rigCard(t, db, player.Card.ID, [5]int{3, 17, 34, 50, 70})
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17)

	if _, err := games.NotifyReach(game.ID, player.UserID, player.Card.ID, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error without reach pattern, got %v", err)
	}
}

func TestClaimRoulettePool(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)

	names := []string{"p1", "p2", "p3", "p4", "p5"}
	players := make([]*ClaimInviteResult, len(names))
	for i, name := range names {
		players[i] = joinPlayer(t, cards, invite, name)
		rigCard(t, db, players[i].Card.ID, [5]int{3, 17, 34, 50, 70})
	}

	if _, err := games.UpdateAwardRange(game.ID, intPtr(1), intPtr(5)); err != nil {
		t.Fatalf("update award range: %v", err)
	}
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50, 70)

	for _, p := range players {
		if _, err := games.ClaimBingo(game.ID, p.UserID, p.Card.ID, nil); err != nil {
			t.Fatalf("claim bingo for user %d: %v", p.UserID, err)
		}
	}

	for i, p := range players {
		result, remaining, err := games.ClaimRoulette(game.ID, p.UserID, i+1, nil)
		if err != nil {
			t.Fatalf("claim award %d: %v", i+1, err)
		}
		if result.Award != i+1 {
			t.Fatalf("award = %d, want %d", result.Award, i+1)
		}
		if len(remaining) != 5-(i+1) {
			t.Fatalf("remaining after %d claims = %v", i+1, remaining)
		}
	}

	// The pool is spent: claiming an already-taken value is a conflict.
	extra := joinPlayer(t, cards, invite, "p6")
	rigCard(t, db, extra.Card.ID, [5]int{3, 17, 34, 50, 70})
	if _, err := games.ClaimBingo(game.ID, extra.UserID, extra.Card.ID, nil); err != nil {
		t.Fatalf("sixth winner: %v", err)
	}
	if _, _, err := games.ClaimRoulette(game.ID, extra.UserID, 3, nil); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict on spent award, got %v", err)
	}
}

func TestClaimRouletteValidation(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	winner := joinPlayer(t, cards, invite, "kate")
	loser := joinPlayer(t, cards, invite, "liam")
	rigCard(t, db, winner.Card.ID, [5]int{3, 17, 34, 50, 70})

	if _, err := games.UpdateAwardRange(game.ID, intPtr(1), intPtr(5)); err != nil {
		t.Fatalf("update award range: %v", err)
	}
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50, 70)

	// Non-winners cannot claim.
	if _, _, err := games.ClaimRoulette(game.ID, loser.UserID, 2, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for non-winner, got %v", err)
	}

	if _, err := games.ClaimBingo(game.ID, winner.UserID, winner.Card.ID, nil); err != nil {
		t.Fatalf("claim bingo: %v", err)
	}

	// Out-of-range award values are rejected.
	if _, _, err := games.ClaimRoulette(game.ID, winner.UserID, 6, nil); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for out-of-range award, got %v", err)
	}

	// One award per winner.
	if _, _, err := games.ClaimRoulette(game.ID, winner.UserID, 2, nil); err != nil {
		t.Fatalf("claim award: %v", err)
	}
	if _, _, err := games.ClaimRoulette(game.ID, winner.UserID, 4, nil); !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict on second award, got %v", err)
	}
}

func TestStartGameConcurrent(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	joinPlayer(t, cards, invite, "olga")

	var g errgroup.Group
	startErrs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, startErrs[i] = games.StartGame(game.ID, false, nil)
			return nil
		})
	}
	g.Wait()

	successes, rejected := 0, 0
	for _, err := range startErrs {
		switch {
		case err == nil:
			successes++
		case errs.IsKind(err, errs.KindInvalidState):
			rejected++
		default:
			t.Fatalf("unexpected start error: %v", err)
		}
	}
	if successes != 1 || rejected != 1 {
		t.Fatalf("got %d successes and %d rejections, want exactly 1 each", successes, rejected)
	}
}

func TestClaimRouletteConcurrentSameWinner(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	winner := joinPlayer(t, cards, invite, "pia")
	rigCard(t, db, winner.Card.ID, [5]int{3, 17, 34, 50, 70})

	if _, err := games.UpdateAwardRange(game.ID, intPtr(1), intPtr(5)); err != nil {
		t.Fatalf("update award range: %v", err)
	}
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 3, 17, 34, 50, 70)
	if _, err := games.ClaimBingo(game.ID, winner.UserID, winner.Card.ID, nil); err != nil {
		t.Fatalf("claim bingo: %v", err)
	}

	// The same winner races two different award values; the one-award-per
	// participant guard leaves exactly one standing.
	var g errgroup.Group
	claimErrs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, _, claimErrs[i] = games.ClaimRoulette(game.ID, winner.UserID, i+1, nil)
			return nil
		})
	}
	g.Wait()

	successes, conflicts := 0, 0
	for _, err := range claimErrs {
		switch {
		case err == nil:
			successes++
		case errs.IsKind(err, errs.KindConflict):
			conflicts++
			if !strings.Contains(err.Error(), "already claimed an award") {
				t.Fatalf("conflict blamed the wrong guard: %v", err)
			}
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 each", successes, conflicts)
	}

	var count int64
	db.Model(&models.RouletteResult{}).Where("game_id = ?", game.ID).Count(&count)
	if count != 1 {
		t.Fatalf("roulette results = %d, want 1", count)
	}
}

func TestEndGameLifecycle(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, _ := newWaitingGame(t, db, games)

	ended, err := games.EndGame(game.ID, nil)
	if err != nil {
		t.Fatalf("end game: %v", err)
	}
	if ended.Status != models.StatusEnded || ended.EndedAt == nil {
		t.Fatalf("unexpected ended game: %+v", ended)
	}

	// Ending twice fails without being fatal.
	if _, err := games.EndGame(game.ID, nil); !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("expected invalid-state on double end, got %v", err)
	}

	// No claims in an ended game.
	if _, err := games.DrawNumber(game.ID, nil); !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("expected invalid-state draw after end, got %v", err)
	}
}

func TestGetGameStateSnapshot(t *testing.T) {
	db, games, cards := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)
	joinPlayer(t, cards, invite, "mia")
	joinPlayer(t, cards, invite, "noah")
	startRunning(t, db, games, game.ID)
	insertDraws(t, db, game.ID, 10, 20, 30)

	state, err := games.GetGameState(game.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Game.Status != models.StatusRunning {
		t.Fatalf("status = %s", state.Game.Status)
	}
	if state.ParticipantCount != 2 {
		t.Fatalf("participant count = %d", state.ParticipantCount)
	}
	for i, d := range state.DrawnNumbers {
		if d.DrawOrder != i+1 {
			t.Fatalf("draw order at index %d = %d", i, d.DrawOrder)
		}
	}
}

func TestGetHostView(t *testing.T) {
	db, games, _ := newTestServices(t, GameServiceOptions{})
	game, invite := newWaitingGame(t, db, games)

	view, err := games.GetHostView(game.HostToken)
	if err != nil {
		t.Fatalf("get host view: %v", err)
	}
	if view.GameID != game.ID || view.InviteToken != invite.Token {
		t.Fatalf("unexpected host view: %+v", view)
	}

	if _, err := games.GetHostView("bogus"); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not-found for bogus host token, got %v", err)
	}
}
