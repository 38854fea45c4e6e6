// Package achievements evaluates achievement predicates against lifetime
// stats and profile progress.
package achievements

import (
	"log/slog"
	"sort"
	"time"

	"github.com/pthm-cable/scrapline/telemetry"
)

// Categories.
const (
	CategoryCombat      = "combat"
	CategoryProgression = "progression"
	CategoryEndless     = "endless"
	CategoryCollection  = "collection"
	CategorySecret      = "secret"
)

// Rarities.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Snapshot is the read-only state achievements are evaluated against.
type Snapshot struct {
	Stats             *telemetry.GameStats
	Level             int
	TotalPointsEarned int
	TalentRanks       int // Ranks bought across all pilots
	ActiveSynergies   int
	EnemiesDiscovered int // Codex entries seen
	Lives             int
}

// Definition is an achievement: static metadata plus a pure predicate.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Rarity      string
	Hidden      bool
	Check       func(Snapshot) bool
}

// Unlocked maps achievement id to unlock time. It is the persisted state.
type Unlocked map[string]time.Time

// Has reports whether an achievement is recorded.
func (u Unlocked) Has(id string) bool {
	_, ok := u[id]
	return ok
}

// Evaluate returns the definitions whose predicate holds and which are not
// yet unlocked, in definition order. It does not record them.
func Evaluate(defs []Definition, snap Snapshot, unlocked Unlocked) []Definition {
	if snap.Stats == nil {
		snap.Stats = telemetry.NewGameStats()
	}
	var fresh []Definition
	for _, d := range defs {
		if unlocked.Has(d.ID) || d.Check == nil {
			continue
		}
		if d.Check(snap) {
			fresh = append(fresh, d)
		}
	}
	return fresh
}

// Record marks definitions unlocked at now. Already unlocked ids keep their
// original time.
func Record(unlocked Unlocked, defs []Definition, now time.Time) {
	for _, d := range defs {
		if unlocked.Has(d.ID) {
			continue
		}
		unlocked[d.ID] = now
		slog.Info("achievement_unlocked", "id", d.ID, "rarity", d.Rarity)
	}
}

// Visible returns the definitions a listing may show: hidden achievements
// appear only once unlocked.
func Visible(defs []Definition, unlocked Unlocked) []Definition {
	var out []Definition
	for _, d := range defs {
		if d.Hidden && !unlocked.Has(d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Lookup finds a definition by id.
func Lookup(defs []Definition, id string) (Definition, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Progress summarizes unlocks per category.
type Progress struct {
	Category string
	Unlocked int
	Total    int
}

// Summary counts unlocks per category, sorted by category name.
func Summary(defs []Definition, unlocked Unlocked) []Progress {
	byCat := make(map[string]*Progress)
	for _, d := range defs {
		p := byCat[d.Category]
		if p == nil {
			p = &Progress{Category: d.Category}
			byCat[d.Category] = p
		}
		p.Total++
		if unlocked.Has(d.ID) {
			p.Unlocked++
		}
	}
	out := make([]Progress, 0, len(byCat))
	for _, p := range byCat {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
