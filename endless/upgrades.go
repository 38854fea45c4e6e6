package endless

import (
	"fmt"
	"slices"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/rng"
)

// UpgradeFunc transforms the run state for one upgrade.
type UpgradeFunc func(rs *RunState, cfg config.EndlessConfig)

// Upgrades maps upgrade id to its effect. Adding an upgrade is adding an
// entry here and in the content catalog.
var Upgrades = map[string]UpgradeFunc{
	"hull_plating": func(rs *RunState, _ config.EndlessConfig) {
		rs.MaxHP += 15
		rs.HP += 15
	},
	"repair_kit": func(rs *RunState, _ config.EndlessConfig) {
		rs.HP = min(rs.MaxHP, rs.HP+rs.MaxHP*0.3)
	},
	"capacitor": func(rs *RunState, _ config.EndlessConfig) {
		rs.MaxEnergy += 20
		rs.Energy = rs.MaxEnergy
	},
	"heat_sink": func(rs *RunState, _ config.EndlessConfig) {
		rs.Heat = 0
	},
	"overclock": func(rs *RunState, _ config.EndlessConfig) {
		rs.DamageBonus += 0.10
	},
	"coolant": func(rs *RunState, cfg config.EndlessConfig) {
		rs.CooldownReduction = min(rs.CooldownReduction+0.10, cfg.MaxCooldownReduction)
	},
	"scrap_magnet": func(rs *RunState, _ config.EndlessConfig) {
		rs.ScrapMult += 0.25
	},
	"vampiric_rounds": func(rs *RunState, _ config.EndlessConfig) {
		rs.MaxHP += 25
		rs.HP = min(rs.MaxHP, rs.HP+rs.MaxHP*0.5)
	},
	"titan_core": func(rs *RunState, _ config.EndlessConfig) {
		rs.DamageBonus += 0.25
		rs.HP *= 1.1
		rs.MaxHP *= 1.1
	},
}

// ApplyUpgrade applies an upgrade and records it. The same id may be
// applied more than once in a run.
func ApplyUpgrade(rs *RunState, id string, cfg config.EndlessConfig) error {
	fn, ok := Upgrades[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUpgrade, id)
	}
	fn(rs, cfg)
	rs.Upgrades = append(rs.Upgrades, id)
	return nil
}

// Choose applies one of the pending choices and clears the pending flag.
func Choose(rs *RunState, id string, cfg config.EndlessConfig) error {
	if !rs.Active {
		return ErrNotActive
	}
	if !rs.PendingUpgrade {
		return ErrNoUpgradePending
	}
	if !slices.Contains(rs.Choices, id) {
		return fmt.Errorf("%w: %s", ErrUpgradeNotOffered, id)
	}
	if err := ApplyUpgrade(rs, id, cfg); err != nil {
		return err
	}
	rs.PendingUpgrade = false
	rs.Choices = nil
	return nil
}

// rarityOrder fixes the iteration order of the rarity table.
var rarityOrder = []string{"legendary", "rare", "common"}

// RollChoices draws up to n distinct upgrade ids. Each draw first rolls a
// rarity by weight, then picks uniformly within that rarity. A rarity whose
// pool is exhausted falls through to whatever is left.
func RollChoices(src rng.Source, n int, cat *content.Catalog, weights map[string]float64) []string {
	pools := cat.UpgradesByRarity()
	w := make([]float64, len(rarityOrder))
	for i, r := range rarityOrder {
		w[i] = weights[r]
	}

	var choices []string
	taken := make(map[string]bool)
	for len(choices) < n {
		var pool []string
		if idx := rng.WeightedIndex(src, w); idx >= 0 {
			pool = available(pools[rarityOrder[idx]], taken)
		}
		if len(pool) == 0 {
			for _, r := range rarityOrder {
				pool = append(pool, available(pools[r], taken)...)
			}
		}
		if len(pool) == 0 {
			break
		}
		pick := pool[src.Intn(len(pool))]
		taken[pick] = true
		choices = append(choices, pick)
	}

	src.Shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })
	return choices
}

func available(ids []string, taken map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if !taken[id] && Upgrades[id] != nil {
			out = append(out, id)
		}
	}
	return out
}
