package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestGameStatsRecording(t *testing.T) {
	s := NewGameStats()

	s.RecordRunStart("vanguard")
	s.RecordStageAttempt(1)
	s.RecordDamageDealt("vanguard", 30, true)
	s.RecordDamageDealt("vanguard", 12, false)
	s.RecordDamageDealt("vanguard", -5, false)
	s.RecordDamageTaken(9)
	s.RecordEnemyKill("vanguard", "scrap_drone", false)
	s.RecordEnemyKill("vanguard", "junk_titan", true)
	s.RecordItemUsage("repair_patch")
	s.RecordAbilityUsage("strike")
	s.RecordAbilityUsage("strike")
	s.RecordStageClear("vanguard", 1, 42000)
	s.RecordStageClear("vanguard", 1, 50000)
	s.RecordRunEnd("vanguard", false)
	s.RecordScrap(15)
	s.RecordScrap(-6)

	if s.TotalDamageDealt != 42 || s.HighestHit != 30 || s.CriticalHits != 1 {
		t.Errorf("damage = %v highest=%v crits=%d", s.TotalDamageDealt, s.HighestHit, s.CriticalHits)
	}
	if s.EnemiesKilled != 2 || s.BossesKilled != 1 || s.KillsByEnemy["junk_titan"] != 1 {
		t.Errorf("kills = %d bosses=%d by=%v", s.EnemiesKilled, s.BossesKilled, s.KillsByEnemy)
	}
	if s.AbilityUsage["strike"] != 2 || s.ItemUsage["repair_patch"] != 1 {
		t.Errorf("usage = %v %v", s.AbilityUsage, s.ItemUsage)
	}
	p := s.Pilots["vanguard"]
	if p.Runs != 1 || p.Defeats != 1 || p.Kills != 2 || p.BestStage != 1 || p.DamageDealt != 42 {
		t.Errorf("pilot = %+v", p)
	}
	st := s.Stages[1]
	if st.Attempts != 1 || st.Clears != 2 || st.FastestClearMs != 42000 {
		t.Errorf("stage = %+v", st)
	}
	if s.ScrapEarned != 15 || s.ScrapSpent != 6 {
		t.Errorf("scrap = %d/%d", s.ScrapEarned, s.ScrapSpent)
	}
}

func TestGameStatsEndlessAggregates(t *testing.T) {
	s := NewGameStats()
	s.RecordEndlessRun("pyro", 12, 40, 1800)
	s.RecordEndlessRun("pyro", 8, 25, 1100)

	if s.EndlessRuns != 2 || s.EndlessBestWave != 12 || s.EndlessBestScore != 1800 || s.EndlessTotalKills != 65 {
		t.Errorf("endless = %+v", s)
	}
	if s.Pilots["pyro"].BestWave != 12 {
		t.Errorf("pilot best wave = %d", s.Pilots["pyro"].BestWave)
	}
}

func TestGameStatsCloneIsDeep(t *testing.T) {
	s := NewGameStats()
	s.RecordEnemyKill("vanguard", "swarmling", false)
	s.RecordStageClear("vanguard", 2, 1000)

	c := s.Clone()
	c.RecordEnemyKill("vanguard", "swarmling", false)
	c.RecordStageClear("vanguard", 2, 500)

	if s.KillsByEnemy["swarmling"] != 1 || s.Pilots["vanguard"].Kills != 1 {
		t.Error("clone shares kill maps with the original")
	}
	if s.Stages[2].FastestClearMs != 1000 {
		t.Error("clone shares stage breakdown with the original")
	}
}

func TestGameStatsResetAndJSON(t *testing.T) {
	s := NewGameStats()
	s.RecordEnemyKill("vanguard", "swarmling", false)
	s.RecordStageClear("vanguard", 3, 1000)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"stages":{"3":`) {
		t.Errorf("stage keys not encoded as strings: %s", data)
	}
	var back GameStats
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(&back, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, s)
	}

	s.Reset()
	if !reflect.DeepEqual(s, NewGameStats()) {
		t.Errorf("reset left state behind: %+v", s)
	}
}

// ---------- RunTracker ----------

func TestRunTracker(t *testing.T) {
	rt := NewRunTracker()
	rt.Register(1, "scrap_drone", 0)
	rt.Register(2, "rust_brute", 500)

	events := []Event{
		NewAbilityEvent(1000, "strike", true),
		NewDamageDealtEvent(1000, 1, "strike", 40, true),
		NewKillEvent(1000, 1, "scrap_drone", false, 5),
		NewConsumableEvent(2000, "repair_patch"),
		NewRejectedEvent(2100, "arc_storm"),
		NewDamageTakenEvent(2500, 2, "attack", 11),
		NewMissEvent(2600, 2),
		NewAbilityEvent(4000, "strike", false),
		NewDamageDealtEvent(4000, 2, "strike", 25, false),
	}
	for _, ev := range events {
		rt.Observe(ev)
	}

	got := rt.Totals()
	want := RunTotals{
		DamageDealt:    65,
		DamageTaken:    11,
		EnemiesKilled:  1,
		ItemsUsed:      1,
		TurnsElapsed:   3,
		CriticalHits:   1,
		Misses:         1,
		Rejections:     1,
		LongestFightMs: 1000,
	}
	if got != want {
		t.Errorf("totals = %+v, want %+v", got, want)
	}
	if rt.Get(1) != nil {
		t.Error("killed enemy still tracked")
	}
	if r := rt.Get(2); r == nil || r.DamageTaken != 25 || r.HitsTaken != 1 {
		t.Errorf("enemy 2 record = %+v", r)
	}

	rt.Reset()
	if rt.Count() != 0 || rt.Totals() != (RunTotals{}) {
		t.Error("reset left state behind")
	}
}

// ---------- OutputManager ----------

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v %v", om, err)
	}
	// Nil manager methods are no-ops
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 1; i <= 2; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndMs: int64(i * 10000), Wave: i, Kills: i}); err != nil {
			t.Fatalf("telemetry: %v", err)
		}
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkCloseCall, TimeMs: 5, Description: "close"}); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if err := om.WriteRun(RunRow{Mode: "endless", PilotID: "pyro", Reached: 7, Score: 900}); err != nil {
		t.Fatalf("run: %v", err)
	}
	lb := NewLeaderboard(5)
	lb.Insert(LeaderboardEntry{Score: 900, Wave: 7, PilotID: "pyro", Date: day})
	if err := om.WriteLeaderboard(lb); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("telemetry.csv has %d lines, want header + 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end_ms,") {
		t.Errorf("header = %q", lines[0])
	}

	lbCSV, err := os.ReadFile(filepath.Join(dir, "leaderboard.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(lbCSV), "1,900,7,0,pyro,,2026-03-14,0") {
		t.Errorf("leaderboard.csv = %s", lbCSV)
	}
	if _, err := os.Stat(filepath.Join(dir, "leaderboard.json")); err != nil {
		t.Errorf("leaderboard.json missing: %v", err)
	}
}
