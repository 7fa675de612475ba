package services

import "garabingo/models"

// Line identifies one of the 12 candidate bingo lines on a 5x5 card.
// Kind is "row", "col", "diag" or "anti_diag"; Index is the row/column number
// and 0 for diagonals.
type Line struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

// PatternResult is the outcome of evaluating a card against the drawn set.
// Win and Reach are mutually exclusive: a card with any complete line is a
// win even if another line sits at four marks.
type PatternResult struct {
	Win   bool
	Reach bool
	Line  *Line
}

const freeRow, freeCol = 2, 2

// markGrid builds the 5x5 marked grid for a card. A cell is marked when its
// number has been drawn or it is the free center space.
func markGrid(cells []models.CardCell, drawn map[int]bool) [5][5]bool {
	var marked [5][5]bool
	marked[freeRow][freeCol] = true
	for _, cell := range cells {
		if cell.Row < 0 || cell.Row > 4 || cell.Col < 0 || cell.Col > 4 {
			continue
		}
		if cell.Row == freeRow && cell.Col == freeCol {
			continue
		}
		if drawn[cell.Number] {
			marked[cell.Row][cell.Col] = true
		}
	}
	return marked
}

// lineCount returns how many of the 5 cells on the given line are marked.
func lineCount(marked [5][5]bool, line Line) int {
	count := 0
	for i := 0; i < 5; i++ {
		var m bool
		switch line.Kind {
		case "row":
			m = marked[line.Index][i]
		case "col":
			m = marked[i][line.Index]
		case "diag":
			m = marked[i][i]
		case "anti_diag":
			m = marked[i][4-i]
		}
		if m {
			count++
		}
	}
	return count
}

// candidateLines enumerates the 12 lines in the fixed evaluation order:
// rows 0-4, columns 0-4, main diagonal, anti-diagonal.
func candidateLines() []Line {
	lines := make([]Line, 0, 12)
	for r := 0; r < 5; r++ {
		lines = append(lines, Line{Kind: "row", Index: r})
	}
	for c := 0; c < 5; c++ {
		lines = append(lines, Line{Kind: "col", Index: c})
	}
	lines = append(lines, Line{Kind: "diag"}, Line{Kind: "anti_diag"})
	return lines
}

// EvaluateCard checks a card's cells against the drawn numbers. It is a pure
// function over its inputs and safe to call from any goroutine.
func EvaluateCard(cells []models.CardCell, drawn map[int]bool) PatternResult {
	marked := markGrid(cells, drawn)

	var reach *Line
	for _, line := range candidateLines() {
		switch lineCount(marked, line) {
		case 5:
			l := line
			return PatternResult{Win: true, Line: &l}
		case 4:
			if reach == nil {
				l := line
				reach = &l
			}
		}
	}

	if reach != nil {
		return PatternResult{Reach: true, Line: reach}
	}
	return PatternResult{}
}

// drawnSet converts draw rows into the set the evaluator consumes.
func drawnSet(draws []models.GameDraw) map[int]bool {
	set := make(map[int]bool, len(draws))
	for _, d := range draws {
		set[d.Number] = true
	}
	return set
}
