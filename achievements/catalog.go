package achievements

import "github.com/pthm-cable/scrapline/telemetry"

func stat(f func(*telemetry.GameStats) int, n int) func(Snapshot) bool {
	return func(s Snapshot) bool { return f(s.Stats) >= n }
}

// Default is the shipped achievement list.
var Default = []Definition{
	{
		ID: "first_blood", Name: "First Blood", Description: "Destroy an enemy",
		Category: CategoryCombat, Rarity: RarityCommon,
		Check: stat(func(s *telemetry.GameStats) int { return s.EnemiesKilled }, 1),
	},
	{
		ID: "scrapper", Name: "Scrapper", Description: "Destroy 100 enemies",
		Category: CategoryCombat, Rarity: RarityRare,
		Check: stat(func(s *telemetry.GameStats) int { return s.EnemiesKilled }, 100),
	},
	{
		ID: "giant_slayer", Name: "Giant Slayer", Description: "Destroy a boss",
		Category: CategoryCombat, Rarity: RarityRare,
		Check: stat(func(s *telemetry.GameStats) int { return s.BossesKilled }, 1),
	},
	{
		ID: "heavy_hitter", Name: "Heavy Hitter", Description: "Land a single hit of 100 damage",
		Category: CategoryCombat, Rarity: RarityEpic,
		Check: func(s Snapshot) bool { return s.Stats.HighestHit >= 100 },
	},
	{
		ID: "lucky_streak", Name: "Lucky Streak", Description: "Land 50 critical hits",
		Category: CategoryCombat, Rarity: RarityRare,
		Check: stat(func(s *telemetry.GameStats) int { return s.CriticalHits }, 50),
	},
	{
		ID: "weather_the_storm", Name: "Weather the Storm", Description: "Survive 10 hazards",
		Category: CategoryEndless, Rarity: RarityRare,
		Check: stat(func(s *telemetry.GameStats) int { return s.HazardsSurvived }, 10),
	},
	{
		ID: "first_stage", Name: "Boots on the Ground", Description: "Clear a story stage",
		Category: CategoryProgression, Rarity: RarityCommon,
		Check: stat(func(s *telemetry.GameStats) int { return s.StagesCleared }, 1),
	},
	{
		ID: "campaign_victor", Name: "Campaign Victor", Description: "Win a story run",
		Category: CategoryProgression, Rarity: RarityEpic,
		Check: stat(func(s *telemetry.GameStats) int { return s.RunsWon }, 1),
	},
	{
		ID: "veteran", Name: "Veteran", Description: "Reach profile level 10",
		Category: CategoryProgression, Rarity: RarityRare,
		Check: func(s Snapshot) bool { return s.Level >= 10 },
	},
	{
		ID: "talented", Name: "Talented", Description: "Buy 10 talent ranks",
		Category: CategoryProgression, Rarity: RarityCommon,
		Check: func(s Snapshot) bool { return s.TalentRanks >= 10 },
	},
	{
		ID: "in_sync", Name: "In Sync", Description: "Activate a talent synergy",
		Category: CategoryProgression, Rarity: RarityRare,
		Check: func(s Snapshot) bool { return s.ActiveSynergies >= 1 },
	},
	{
		ID: "wave_10", Name: "Holding the Line", Description: "Reach wave 10 in endless mode",
		Category: CategoryEndless, Rarity: RarityRare,
		Check: stat(func(s *telemetry.GameStats) int { return s.EndlessBestWave }, 10),
	},
	{
		ID: "wave_25", Name: "Unbreakable", Description: "Reach wave 25 in endless mode",
		Category: CategoryEndless, Rarity: RarityLegendary,
		Check: stat(func(s *telemetry.GameStats) int { return s.EndlessBestWave }, 25),
	},
	{
		ID: "high_scorer", Name: "High Scorer", Description: "Score 5000 in one endless run",
		Category: CategoryEndless, Rarity: RarityEpic,
		Check: stat(func(s *telemetry.GameStats) int { return s.EndlessBestScore }, 5000),
	},
	{
		ID: "field_guide", Name: "Field Guide", Description: "Discover 5 enemy types",
		Category: CategoryCollection, Rarity: RarityCommon,
		Check: func(s Snapshot) bool { return s.EnemiesDiscovered >= 5 },
	},
	{
		ID: "quartermaster", Name: "Quartermaster", Description: "Use 25 consumables",
		Category: CategoryCollection, Rarity: RarityCommon,
		Check: stat(func(s *telemetry.GameStats) int { return s.ItemsUsed }, 25),
	},
	{
		ID: "last_legs", Name: "Last Legs", Description: "Win a story run on your final life",
		Category: CategorySecret, Rarity: RarityLegendary, Hidden: true,
		Check: func(s Snapshot) bool { return s.Stats.RunsWon > 0 && s.Lives == 1 },
	},
	{
		ID: "pacifist_pilot", Name: "Lover Not a Fighter", Description: "Lose a run without landing a hit",
		Category: CategorySecret, Rarity: RarityEpic, Hidden: true,
		Check: func(s Snapshot) bool { return s.Stats.RunsLost > 0 && s.Stats.TotalDamageDealt == 0 },
	},
}
