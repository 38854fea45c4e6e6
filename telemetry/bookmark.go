package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkDamageSpike    BookmarkType = "damage_spike"
	BookmarkCloseCall      BookmarkType = "close_call"
	BookmarkComeback       BookmarkType = "comeback"
	BookmarkResourceStarve BookmarkType = "resource_starve"
	BookmarkFlawless       BookmarkType = "flawless"
)

// Bookmark marks an interesting moment in a battle.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	TimeMs      int64        `csv:"time_ms"`
	Wave        int          `csv:"wave"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"time_ms", b.TimeMs,
		"wave", b.Wave,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments from the window stats stream.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	lowestHP        float64 // lowest player HP fraction since the last comeback
	flawlessWindows int     // consecutive windows with kills and no damage taken
	closeCallArmed  bool    // HP was healthy since the last close call
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for flawless detection
	}
	return &BookmarkDetector{
		history:        make([]WindowStats, historySize),
		historySize:    historySize,
		lowestHP:       1,
		closeCallArmed: true,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Damage spike: DPS > 2x rolling average
		if b := bd.checkDamageSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Comeback: HP recovered from <=25% to >=60%
		if b := bd.checkComeback(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	// Close call: survived a window below 15% HP
	if b := bd.checkCloseCall(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Resource starve: three or more refused actions in one window
	if b := bd.checkResourceStarve(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Flawless: five windows in a row with kills and no damage taken
	if b := bd.checkFlawless(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	if stats.PlayerHPFrac > 0 && stats.PlayerHPFrac < bd.lowestHP {
		bd.lowestHP = stats.PlayerHPFrac
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkDamageSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.DPS
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.DPS > avg*2.0 && stats.Kills >= 1 {
		return &Bookmark{
			Type:        BookmarkDamageSpike,
			TimeMs:      stats.WindowEndMs,
			Wave:        stats.Wave,
			Description: fmt.Sprintf("DPS %.1f is %.1fx average (%.1f)", stats.DPS, stats.DPS/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkComeback(stats WindowStats) *Bookmark {
	if bd.lowestHP > 0.25 || stats.PlayerHPFrac < 0.60 {
		return nil
	}
	low := bd.lowestHP
	bd.lowestHP = stats.PlayerHPFrac
	return &Bookmark{
		Type:        BookmarkComeback,
		TimeMs:      stats.WindowEndMs,
		Wave:        stats.Wave,
		Description: fmt.Sprintf("Recovered from %.0f%% to %.0f%% HP", low*100, stats.PlayerHPFrac*100),
	}
}

func (bd *BookmarkDetector) checkCloseCall(stats WindowStats) *Bookmark {
	if stats.PlayerHPFrac >= 0.5 {
		bd.closeCallArmed = true
		return nil
	}
	if !bd.closeCallArmed || stats.PlayerHPFrac <= 0 || stats.PlayerHPFrac >= 0.15 {
		return nil
	}
	bd.closeCallArmed = false
	return &Bookmark{
		Type:        BookmarkCloseCall,
		TimeMs:      stats.WindowEndMs,
		Wave:        stats.Wave,
		Description: fmt.Sprintf("Survived at %.0f%% HP with %d enemies left", stats.PlayerHPFrac*100, stats.Enemies),
	}
}

func (bd *BookmarkDetector) checkResourceStarve(stats WindowStats) *Bookmark {
	if stats.Rejections < 3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkResourceStarve,
		TimeMs:      stats.WindowEndMs,
		Wave:        stats.Wave,
		Description: fmt.Sprintf("%d actions refused in one window", stats.Rejections),
	}
}

func (bd *BookmarkDetector) checkFlawless(stats WindowStats) *Bookmark {
	if stats.DamageTaken > 0 || stats.Kills == 0 {
		bd.flawlessWindows = 0
		return nil
	}
	bd.flawlessWindows++
	if bd.flawlessWindows == 5 { // trigger exactly once per streak
		return &Bookmark{
			Type:        BookmarkFlawless,
			TimeMs:      stats.WindowEndMs,
			Wave:        stats.Wave,
			Description: "Five windows of kills without taking damage",
		}
	}
	return nil
}
