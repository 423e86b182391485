package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstSuccess BookmarkType = "first_success"
	BookmarkBreakthrough BookmarkType = "fitness_breakthrough"
	BookmarkPlateau      BookmarkType = "plateau"
	BookmarkWipeout      BookmarkType = "wipeout"
)

// Bookmark marks a notable generation in a stage.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Stage       string       `csv:"stage"`
	Generation  int          `csv:"generation"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"stage", b.Stage,
		"generation", b.Generation,
		"description", b.Description,
	)
}

// BookmarkDetector watches generation stats for notable moments.
// Use one detector per stage.
type BookmarkDetector struct {
	history     []GenerationStats
	historySize int
	historyIdx  int
	historyFull bool

	bestFitness  float64
	hasBest      bool
	sinceBest    int
	plateauFired bool
	succeeded    bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]GenerationStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats GenerationStats) []Bookmark {
	var bookmarks []Bookmark

	if !bd.succeeded && stats.Successes > 0 {
		bd.succeeded = true
		bookmarks = append(bookmarks, Bookmark{
			Type:        BookmarkFirstSuccess,
			Stage:       stats.Stage,
			Generation:  stats.Generation,
			Description: fmt.Sprintf("%d of %d agents reached the goal", stats.Successes, stats.Population),
		})
	}

	if b := bd.checkBreakthrough(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkWipeout(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkPlateau(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats GenerationStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []GenerationStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) last() (GenerationStats, bool) {
	if !bd.historyFull && bd.historyIdx == 0 {
		return GenerationStats{}, false
	}
	idx := (bd.historyIdx - 1 + bd.historySize) % bd.historySize
	return bd.history[idx], true
}

// checkBreakthrough fires when max fitness exceeds twice the rolling average.
func (bd *BookmarkDetector) checkBreakthrough(stats GenerationStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.MaxFitness
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.MaxFitness > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkBreakthrough,
			Stage:       stats.Stage,
			Generation:  stats.Generation,
			Description: fmt.Sprintf("Max fitness %.2f is %.1fx rolling average (%.2f)", stats.MaxFitness, stats.MaxFitness/avg, avg),
		}
	}
	return nil
}

// checkWipeout fires when no agent survives or succeeds after a generation
// in which some did.
func (bd *BookmarkDetector) checkWipeout(stats GenerationStats) *Bookmark {
	prev, ok := bd.last()
	if !ok || prev.AliveOrSuccess == 0 || stats.AliveOrSuccess > 0 || stats.Population == 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkWipeout,
		Stage:       stats.Stage,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("No survivors, down from %d", prev.AliveOrSuccess),
	}
}

// checkPlateau fires once when best fitness has not improved for a full
// history window, and re-arms on the next improvement.
func (bd *BookmarkDetector) checkPlateau(stats GenerationStats) *Bookmark {
	if !bd.hasBest || stats.MaxFitness > bd.bestFitness {
		bd.bestFitness = stats.MaxFitness
		bd.hasBest = true
		bd.sinceBest = 0
		bd.plateauFired = false
		return nil
	}

	bd.sinceBest++
	if bd.plateauFired || bd.sinceBest < bd.historySize {
		return nil
	}
	bd.plateauFired = true
	return &Bookmark{
		Type:        BookmarkPlateau,
		Stage:       stats.Stage,
		Generation:  stats.Generation,
		Description: fmt.Sprintf("Best fitness %.2f unchanged for %d generations", bd.bestFitness, bd.sinceBest),
	}
}
