package systems

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/talent"
)

// EnemyView is the resolver's read-only view of one enemy. Position in the
// slice is the enemy's index.
type EnemyView struct {
	HP        float64
	Alive     bool
	Armor     float64
	Defending bool
	WeakPoint *components.WeakPoint
}

// AbilityInput is everything the resolver needs for one player action.
type AbilityInput struct {
	Ability    content.Ability
	BaseDamage float64
	Pools      Pools
	Enemies    []EnemyView
	Bonuses    talent.Bonuses
	CritRoll   float64 // Uniform [0,1) supplied by the caller's random source
	Overdrive  bool
	Combat     config.CombatConfig
}

// AbilityOutcome is the resolver's verdict. When Consumed is false nothing
// was paid and the caller must not start a cooldown or spend charge.
type AbilityOutcome struct {
	Consumed  bool
	Damage    float64         // Damage before per-target modifiers
	Targets   []int           // Indices into AbilityInput.Enemies
	PerTarget map[int]float64 // Damage each target takes
	Pools     Pools
	Crit      bool
	WeakHit   bool

	SelfStatuses   []components.StatusEffect // Applied to the player
	TargetStatuses []components.StatusEffect // Applied to every target
	Log            string
}

// ResolveAbility computes a player ability. It is pure: pools come back in
// the outcome and the caller applies damage and statuses.
func ResolveAbility(in AbilityInput) AbilityOutcome {
	a := in.Ability
	out := AbilityOutcome{Pools: in.Pools}

	if in.Pools.Hidden && a.Resource != content.ResourceBurrow {
		out.Log = fmt.Sprintf("cannot use %s while burrowed", a.Name)
		return out
	}

	strategy, ok := ResourceStrategies[a.Resource]
	if !ok {
		strategy = ResourceStrategies[content.ResourceNone]
		if a.Resource != "" {
			out.Log = fmt.Sprintf("%s uses unknown resource %q", a.Name, a.Resource)
			return out
		}
	}

	strikes := a.DealsDamage()
	targets := SelectTargets(in.Enemies, a.AoE)
	if strikes && len(targets) == 0 {
		out.Log = fmt.Sprintf("%s has no target", a.Name)
		return out
	}

	pay := strategy(a, in.Pools, in.Combat)
	if !pay.Paid {
		out.Log = pay.Log
		return out
	}
	out.Consumed = true
	out.Pools = pay.Pools

	var notes []string
	if pay.Log != "" {
		notes = append(notes, pay.Log)
	}

	if a.Shield > 0 {
		out.SelfStatuses = append(out.SelfStatuses, components.StatusEffect{
			Type: components.StatusShield, RemainingMs: a.ShieldMs, Value: a.Shield,
		})
	}
	if a.OverdriveMs > 0 {
		out.SelfStatuses = append(out.SelfStatuses, components.StatusEffect{
			Type: components.StatusOverdrive, RemainingMs: a.OverdriveMs,
		})
	}

	if !strikes || pay.NoDamage {
		out.Log = joinLog(fmt.Sprintf("%s activated", a.Name), notes)
		return out
	}

	dmg := (in.BaseDamage + in.Bonuses.Get(talent.EffectDamageFlat)) *
		(1 + in.Bonuses.Get(talent.EffectDamagePct)) *
		a.DamageMult * pay.DamageMult

	if in.CritRoll < in.Bonuses.Get(talent.EffectCritChance) {
		out.Crit = true
		dmg *= in.Combat.CritMultiplier + in.Bonuses.Get(talent.EffectCritDamage)
		notes = append(notes, "critical")
	}
	if in.Overdrive {
		dmg *= in.Combat.OverdriveMultiplier
	}
	dmg = max(dmg, 0)
	out.Damage = dmg

	out.Targets = targets
	out.PerTarget = make(map[int]float64, len(targets))
	for _, idx := range targets {
		e := in.Enemies[idx]
		d := dmg
		if e.WeakPoint != nil && e.WeakPoint.Class == a.Class {
			d *= e.WeakPoint.Multiplier
			out.WeakHit = true
		}
		if e.Armor > 0 {
			d *= 1 - min(e.Armor, 0.9)
		}
		if e.Defending {
			d *= 1 - in.Combat.DefendReduction
		}
		out.PerTarget[idx] = d
	}
	if out.WeakHit {
		notes = append(notes, "weak point")
	}

	if a.Stun && a.StunMs > 0 {
		out.TargetStatuses = append(out.TargetStatuses, components.StatusEffect{
			Type: components.StatusStun, RemainingMs: a.StunMs,
		})
	}
	if a.BurnDamage > 0 && a.BurnMs > 0 {
		out.TargetStatuses = append(out.TargetStatuses, components.StatusEffect{
			Type: components.StatusBurn, RemainingMs: a.BurnMs, Value: a.BurnDamage,
		})
	}

	plural := "target"
	if len(targets) > 1 {
		plural = "targets"
	}
	out.Log = joinLog(fmt.Sprintf("%s hits %d %s for %.0f", a.Name, len(targets), plural, dmg), notes)
	return out
}

// SelectTargets returns every alive index for area abilities, otherwise the
// single alive enemy with the lowest HP (earliest index wins ties).
func SelectTargets(enemies []EnemyView, aoe bool) []int {
	if aoe {
		var all []int
		for i, e := range enemies {
			if e.Alive {
				all = append(all, i)
			}
		}
		return all
	}
	best := -1
	for i, e := range enemies {
		if !e.Alive {
			continue
		}
		if best < 0 || e.HP < enemies[best].HP {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return []int{best}
}

func joinLog(head string, notes []string) string {
	if len(notes) == 0 {
		return head
	}
	return head + " (" + strings.Join(notes, ", ") + ")"
}
