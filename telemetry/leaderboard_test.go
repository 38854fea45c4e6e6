package telemetry

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func entry(score int) LeaderboardEntry {
	return LeaderboardEntry{Score: score, Wave: score / 100, PilotID: "vanguard", Difficulty: "normal", Date: day}
}

func TestLeaderboardSortedAndBounded(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	lb := NewLeaderboard(100)

	for i := 0; i < 500; i++ {
		lb.Insert(entry(rnd.Intn(5000)))

		if lb.Len() > 100 {
			t.Fatalf("len = %d after %d inserts", lb.Len(), i+1)
		}
		entries := lb.Entries()
		if !sort.SliceIsSorted(entries, func(a, b int) bool { return entries[a].Score > entries[b].Score }) {
			t.Fatalf("board not sorted descending after %d inserts", i+1)
		}
	}
	if lb.Len() != 100 {
		t.Errorf("len = %d, want 100", lb.Len())
	}
}

func TestLeaderboardInsertPosition(t *testing.T) {
	lb := NewLeaderboard(3)

	tests := []struct {
		score int
		want  int
	}{
		{500, 1},
		{700, 1},
		{600, 2},
		{600, 3}, // tie lands after the existing entry
		{100, 0}, // full and lowest
		{900, 1},
	}
	for _, tt := range tests {
		if got := lb.Insert(entry(tt.score)); got != tt.want {
			t.Errorf("Insert(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
	var scores []int
	for _, e := range lb.Entries() {
		scores = append(scores, e.Score)
	}
	if len(scores) != 3 || scores[0] != 900 || scores[1] != 700 || scores[2] != 600 {
		t.Errorf("scores = %v, want [900 700 600]", scores)
	}
}

func TestLeaderboardRankCountsStrictlyGreater(t *testing.T) {
	lb := NewLeaderboard(10)
	for _, s := range []int{900, 700, 700, 300} {
		lb.Insert(entry(s))
	}

	tests := []struct {
		score int
		want  int
	}{
		{1000, 1},
		{900, 1},
		{800, 2},
		{700, 2},
		{500, 4},
		{0, 5},
	}
	for _, tt := range tests {
		if got := lb.Rank(tt.score); got != tt.want {
			t.Errorf("Rank(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestLeaderboardFilter(t *testing.T) {
	lb := NewLeaderboard(10)
	lb.Insert(LeaderboardEntry{Score: 900, PilotID: "pyro", Difficulty: "hard", Date: day})
	lb.Insert(LeaderboardEntry{Score: 800, PilotID: "vanguard", Difficulty: "normal", Date: day.AddDate(0, 0, -10)})
	lb.Insert(LeaderboardEntry{Score: 700, PilotID: "vanguard", Difficulty: "hard", Date: day})
	lb.Insert(LeaderboardEntry{Score: 600, PilotID: "vanguard", Difficulty: "hard", Date: day})

	tests := []struct {
		name   string
		filter LeaderboardFilter
		want   []int
	}{
		{"all", LeaderboardFilter{}, []int{900, 800, 700, 600}},
		{"pilot", LeaderboardFilter{PilotID: "vanguard"}, []int{800, 700, 600}},
		{"difficulty", LeaderboardFilter{Difficulty: "hard"}, []int{900, 700, 600}},
		{"since", LeaderboardFilter{Since: day.AddDate(0, 0, -1)}, []int{900, 700, 600}},
		{"limit", LeaderboardFilter{PilotID: "vanguard", Difficulty: "hard", Limit: 1}, []int{700}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lb.Filter(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Score != tt.want[i] {
					t.Errorf("entry %d score = %d, want %d", i, got[i].Score, tt.want[i])
				}
			}
		})
	}
}

func TestLeaderboardSummary(t *testing.T) {
	lb := NewLeaderboard(10)
	if s := lb.Summary(); s.Entries != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	lb.Insert(LeaderboardEntry{Score: 100, Wave: 2})
	if s := lb.Summary(); s.MeanScore != 100 || s.StdDevScore != 0 {
		t.Errorf("single entry summary = %+v", s)
	}

	lb.Insert(LeaderboardEntry{Score: 300, Wave: 6})
	lb.Insert(LeaderboardEntry{Score: 200, Wave: 4})
	s := lb.Summary()
	if s.Entries != 3 || math.Abs(s.MeanScore-200) > 1e-9 {
		t.Errorf("summary = %+v", s)
	}
	if s.MedianScore != 200 || s.MedianWave != 4 || s.BestWave != 6 {
		t.Errorf("median/best = %+v", s)
	}
	if math.Abs(s.StdDevScore-100) > 1e-9 {
		t.Errorf("stddev = %v, want 100", s.StdDevScore)
	}
}

func TestLeaderboardJSONResorts(t *testing.T) {
	raw := `[{"score":100},{"score":300},{"score":200},{"score":50}]`
	lb := NewLeaderboard(3)
	if err := json.Unmarshal([]byte(raw), lb); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entries := lb.Entries()
	if len(entries) != 3 || entries[0].Score != 300 || entries[2].Score != 100 {
		t.Errorf("entries = %+v", entries)
	}

	data, err := json.Marshal(lb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Leaderboard
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if back.Len() != 3 || back.MaxSize() != DefaultLeaderboardSize {
		t.Errorf("round trip len=%d max=%d", back.Len(), back.MaxSize())
	}

	if err := json.Unmarshal([]byte(`{"not":"a list"}`), lb); err == nil {
		t.Error("expected error for non-array JSON")
	}
}

func TestLeaderboardRows(t *testing.T) {
	lb := NewLeaderboard(10)
	lb.Insert(LeaderboardEntry{Score: 500, Wave: 5, PilotID: "pyro", Date: day})
	lb.Insert(LeaderboardEntry{Score: 500, Wave: 6, PilotID: "vanguard", Date: day})

	rows := lb.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	for _, r := range rows {
		if r.Rank != 1 {
			t.Errorf("tied row rank = %d, want 1", r.Rank)
		}
		if r.Date != "2026-03-14" {
			t.Errorf("date = %q", r.Date)
		}
	}
}
