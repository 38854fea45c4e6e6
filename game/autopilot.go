package game

import (
	"maps"
	"slices"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/systems"
)

var rarityRank = map[string]int{"legendary": 3, "rare": 2, "common": 1}

// Autopilot plays a session unattended: it queues abilities and
// consumables, shops between stages and picks endless upgrades.
type Autopilot struct {
	HealBelow   float64 // HP fraction under which a heal is used
	ShieldBelow float64 // HP fraction under which shield abilities are preferred
}

// NewAutopilot returns an autopilot with default thresholds.
func NewAutopilot() *Autopilot {
	return &Autopilot{HealBelow: 0.35, ShieldBelow: 0.5}
}

// Act takes at most one decision for the current session state.
func (a *Autopilot) Act(s *Session) error {
	if s.battle == nil {
		return nil
	}
	switch s.battle.State() {
	case StateRunning:
		return a.fight(s)
	case StateWaveClear:
		return a.between(s)
	}
	return nil
}

func (a *Autopilot) fight(s *Session) error {
	p := s.battle.Player()
	if systems.HasStatus(p.Statuses, components.StatusStun) {
		return nil
	}
	hpFrac := p.HP / max(p.MaxHP, 1)

	if hpFrac < a.HealBelow && p.Charge >= s.cfg.Combat.ConsumableChargeCost {
		if id := a.healItem(s); id != "" {
			return s.QueueConsumable(id)
		}
	}
	if p.Charge < s.cfg.Combat.AbilityChargeCost {
		return nil
	}
	if id := a.bestAbility(s, p, hpFrac); id != "" {
		return s.QueueAbility(id)
	}
	return nil
}

// healItem returns a held consumable that heals, empty if none.
func (a *Autopilot) healItem(s *Session) string {
	items := s.battle.Items()
	for _, id := range slices.Sorted(maps.Keys(items)) {
		if items[id] <= 0 {
			continue
		}
		if c, ok := s.cat.Consumable(id); ok && c.Heal > 0 {
			return id
		}
	}
	return ""
}

// bestAbility scores every ready, affordable ability.
func (a *Autopilot) bestAbility(s *Session, p components.Player, hpFrac float64) string {
	pools := systems.Pools{
		Energy:    p.Energy,
		MaxEnergy: p.MaxEnergy,
		Heat:      p.Heat,
		MaxHeat:   p.MaxHeat,
		Jammed:    p.Jammed,
		Hidden:    p.Hidden,
	}
	enemies := s.battle.EnemyCount()

	best, bestScore := "", 0.0
	for _, id := range s.battle.Abilities() {
		ab, ok := s.cat.Ability(id)
		if !ok || p.Cooldown(id) > 0 {
			continue
		}
		if p.Hidden && ab.Resource != content.ResourceBurrow {
			continue
		}
		pay, ok := systems.ResourceStrategies[ab.Resource]
		if !ok {
			pay = systems.ResourceStrategies[content.ResourceNone]
		}
		if !pay(ab, pools, s.cfg.Combat).Paid {
			continue
		}
		score := ab.DamageMult
		if ab.AoE {
			score *= float64(enemies)
		}
		if ab.Stun {
			score += 0.5
		}
		if ab.Shield > 0 && hpFrac < a.ShieldBelow {
			score += 2
		}
		if ab.OverdriveMs > 0 && !systems.HasStatus(p.Statuses, components.StatusOverdrive) {
			score += 1
		}
		// Self-jamming is a last resort.
		if ab.Resource == content.ResourceHeat && p.MaxHeat > 0 && p.Heat+ab.HeatCost >= p.MaxHeat {
			score *= 0.1
		}
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

// between spends the break after a clear and moves on.
func (a *Autopilot) between(s *Session) error {
	switch s.Mode() {
	case ModeStory:
		if items := s.ShopItems(); len(items) > 0 {
			if err := s.PurchaseUpgrade(items[len(items)-1]); err != nil {
				return err
			}
		}
		return s.AdvanceStage()
	case ModeEndless:
		rs := s.doc.EndlessState
		if rs.PendingUpgrade {
			if err := s.ApplyEndlessUpgrade(a.pickUpgrade(s, rs.Choices)); err != nil {
				return err
			}
		}
		return s.AdvanceEndlessWave()
	}
	return nil
}

// pickUpgrade prefers the rarest offered upgrade, first offered on ties.
func (a *Autopilot) pickUpgrade(s *Session, choices []string) string {
	best, bestRank := "", -1
	for _, id := range choices {
		u, _ := s.cat.Upgrade(id)
		if r := rarityRank[u.Rarity]; r > bestRank {
			best, bestRank = id, r
		}
	}
	return best
}
