package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultLeaderboardSize bounds the leaderboard when no size is configured.
const DefaultLeaderboardSize = 100

// LeaderboardEntry records one finished endless run. Entries are immutable
// once inserted.
type LeaderboardEntry struct {
	Wave            int       `json:"wave"`
	Kills           int       `json:"kills"`
	Score           int       `json:"score"`
	PilotID         string    `json:"pilot"`
	Difficulty      string    `json:"difficulty"`
	Date            time.Time `json:"date"`
	SurvivalSeconds int       `json:"survivalSeconds"`
}

// Leaderboard is the bounded list of best endless runs, sorted descending by
// score. Ties keep insertion order.
type Leaderboard struct {
	entries []LeaderboardEntry
	maxSize int
}

// NewLeaderboard creates an empty leaderboard holding at most maxSize entries.
func NewLeaderboard(maxSize int) *Leaderboard {
	if maxSize <= 0 {
		maxSize = DefaultLeaderboardSize
	}
	return &Leaderboard{
		entries: make([]LeaderboardEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Insert adds an entry, keeping the list sorted and bounded. Returns the
// 1-based position the entry landed at, or 0 if it did not make the board.
func (lb *Leaderboard) Insert(entry LeaderboardEntry) int {
	// Find insertion point (sorted descending by score)
	idx := sort.Search(len(lb.entries), func(i int) bool {
		return lb.entries[i].Score < entry.Score
	})

	// If the board is full and the entry would be last, skip it
	if len(lb.entries) >= lb.maxSize && idx >= lb.maxSize {
		return 0
	}

	lb.entries = append(lb.entries, LeaderboardEntry{})
	copy(lb.entries[idx+1:], lb.entries[idx:])
	lb.entries[idx] = entry

	if len(lb.entries) > lb.maxSize {
		lb.entries = lb.entries[:lb.maxSize]
	}
	return idx + 1
}

// Rank returns the rank a score holds: one plus the number of entries with
// a strictly greater score.
func (lb *Leaderboard) Rank(score int) int {
	return sort.Search(len(lb.entries), func(i int) bool {
		return lb.entries[i].Score <= score
	}) + 1
}

// Entries returns a copy of the board, best first.
func (lb *Leaderboard) Entries() []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(lb.entries))
	copy(out, lb.entries)
	return out
}

// Len returns the number of entries.
func (lb *Leaderboard) Len() int {
	return len(lb.entries)
}

// MaxSize returns the capacity.
func (lb *Leaderboard) MaxSize() int {
	return lb.maxSize
}

// Best returns the top entry.
func (lb *Leaderboard) Best() (LeaderboardEntry, bool) {
	if len(lb.entries) == 0 {
		return LeaderboardEntry{}, false
	}
	return lb.entries[0], true
}

// LeaderboardFilter narrows a leaderboard listing. Zero fields match all.
type LeaderboardFilter struct {
	PilotID    string
	Difficulty string
	Since      time.Time
	Limit      int
}

// Filter returns matching entries in board order.
func (lb *Leaderboard) Filter(f LeaderboardFilter) []LeaderboardEntry {
	var out []LeaderboardEntry
	for _, e := range lb.entries {
		if f.PilotID != "" && e.PilotID != f.PilotID {
			continue
		}
		if f.Difficulty != "" && e.Difficulty != f.Difficulty {
			continue
		}
		if !f.Since.IsZero() && e.Date.Before(f.Since) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// LeaderboardSummary holds aggregate statistics over the board.
type LeaderboardSummary struct {
	Entries     int
	MeanScore   float64
	StdDevScore float64
	MedianScore float64
	P90Score    float64
	MedianWave  float64
	BestWave    int
}

// Summary computes aggregate statistics over the board.
func (lb *Leaderboard) Summary() LeaderboardSummary {
	n := len(lb.entries)
	if n == 0 {
		return LeaderboardSummary{}
	}

	scores := make([]float64, n)
	waves := make([]float64, n)
	var best int
	for i, e := range lb.entries {
		scores[i] = float64(e.Score)
		waves[i] = float64(e.Wave)
		best = max(best, e.Wave)
	}
	sort.Float64s(scores)
	sort.Float64s(waves)

	s := LeaderboardSummary{
		Entries:     n,
		MedianScore: stat.Quantile(0.5, stat.Empirical, scores, nil),
		P90Score:    stat.Quantile(0.9, stat.Empirical, scores, nil),
		MedianWave:  stat.Quantile(0.5, stat.Empirical, waves, nil),
		BestWave:    best,
	}
	if n > 1 {
		s.MeanScore, s.StdDevScore = stat.MeanStdDev(scores, nil)
	} else {
		s.MeanScore = stat.Mean(scores, nil)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s LeaderboardSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("entries", s.Entries),
		slog.Float64("mean_score", s.MeanScore),
		slog.Float64("stddev_score", s.StdDevScore),
		slog.Float64("median_score", s.MedianScore),
		slog.Float64("p90_score", s.P90Score),
		slog.Float64("median_wave", s.MedianWave),
		slog.Int("best_wave", s.BestWave),
	)
}

// MarshalJSON serializes the board as an array, best first.
func (lb *Leaderboard) MarshalJSON() ([]byte, error) {
	return json.Marshal(lb.entries)
}

// UnmarshalJSON loads an array of entries. Entries are re-inserted, so an
// unsorted or oversized array comes out sorted and truncated.
func (lb *Leaderboard) UnmarshalJSON(data []byte) error {
	var raw []LeaderboardEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing leaderboard JSON: %w", err)
	}
	if lb.maxSize <= 0 {
		lb.maxSize = DefaultLeaderboardSize
	}
	lb.entries = make([]LeaderboardEntry, 0, min(len(raw), lb.maxSize))
	for _, e := range raw {
		lb.Insert(e)
	}
	return nil
}

// LeaderboardRow is a flat struct for CSV export of an entry.
type LeaderboardRow struct {
	Rank            int    `csv:"rank"`
	Score           int    `csv:"score"`
	Wave            int    `csv:"wave"`
	Kills           int    `csv:"kills"`
	PilotID         string `csv:"pilot"`
	Difficulty      string `csv:"difficulty"`
	Date            string `csv:"date"`
	SurvivalSeconds int    `csv:"survival_sec"`
}

// Rows converts the board to CSV-friendly rows.
func (lb *Leaderboard) Rows() []LeaderboardRow {
	rows := make([]LeaderboardRow, len(lb.entries))
	for i, e := range lb.entries {
		rows[i] = LeaderboardRow{
			Rank:            lb.Rank(e.Score),
			Score:           e.Score,
			Wave:            e.Wave,
			Kills:           e.Kills,
			PilotID:         e.PilotID,
			Difficulty:      e.Difficulty,
			Date:            e.Date.Format(time.DateOnly),
			SurvivalSeconds: e.SurvivalSeconds,
		}
	}
	return rows
}
