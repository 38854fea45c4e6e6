package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
)

// Pools is the player's resource state plus its latches.
type Pools struct {
	Energy    float64
	MaxEnergy float64
	Heat      float64
	MaxHeat   float64
	Jammed    bool
	Hidden    bool
	HiddenMs  int64 // Time left underground
}

// ResourcePayment is the result of paying for an ability.
type ResourcePayment struct {
	Paid       bool
	Pools      Pools
	DamageMult float64 // Extra multiplier granted by the resource model
	NoDamage   bool    // The action does not strike this time
	Log        string  // Rejection reason, or a note about the action
}

// ResourceStrategy pays an ability's cost from the pools. It must not
// mutate anything on rejection; pools are passed by value.
type ResourceStrategy func(a content.Ability, p Pools, cfg config.CombatConfig) ResourcePayment

// ResourceStrategies maps ability.Resource to its payment model. Adding a
// resource model is adding an entry here.
var ResourceStrategies = map[string]ResourceStrategy{
	content.ResourceNone:   payNone,
	content.ResourceEnergy: payEnergy,
	content.ResourceHeat:   payHeat,
	content.ResourceBurrow: payBurrow,
}

func payNone(a content.Ability, p Pools, _ config.CombatConfig) ResourcePayment {
	return ResourcePayment{Paid: true, Pools: p, DamageMult: 1}
}

func payEnergy(a content.Ability, p Pools, _ config.CombatConfig) ResourcePayment {
	if p.Energy < a.EnergyCost {
		return ResourcePayment{Pools: p, Log: fmt.Sprintf("not enough energy for %s (%.0f/%.0f)", a.Name, p.Energy, a.EnergyCost)}
	}
	p.Energy -= a.EnergyCost
	return ResourcePayment{Paid: true, Pools: p, DamageMult: 1}
}

func payHeat(a content.Ability, p Pools, _ config.CombatConfig) ResourcePayment {
	if p.Jammed {
		return ResourcePayment{Pools: p, Log: fmt.Sprintf("systems jammed, cannot fire %s", a.Name)}
	}
	p.Heat += a.HeatCost
	log := ""
	if p.MaxHeat > 0 && p.Heat >= p.MaxHeat {
		p.Heat = p.MaxHeat
		p.Jammed = true
		log = "overheated, systems jammed"
	}
	return ResourcePayment{Paid: true, Pools: p, DamageMult: 1, Log: log}
}

func payBurrow(a content.Ability, p Pools, cfg config.CombatConfig) ResourcePayment {
	if !p.Hidden {
		p.Hidden = true
		p.HiddenMs = int64(max(cfg.BurrowMs, 0))
		return ResourcePayment{Paid: true, Pools: p, NoDamage: true, Log: "burrows underground"}
	}
	p.Hidden, p.HiddenMs = false, 0
	mult := cfg.BurrowStrikeMultiplier
	if mult <= 0 {
		mult = 1
	}
	return ResourcePayment{Paid: true, Pools: p, DamageMult: mult, Log: "erupts from below"}
}

// RegenPools regenerates energy and vents heat over dtSec. The jam latch
// clears once heat is fully vented; the burrow latch clears when its
// window runs out.
func RegenPools(p Pools, energyRegen, heatVent, dtSec float64) Pools {
	if p.MaxEnergy > 0 {
		p.Energy = min(p.MaxEnergy, p.Energy+energyRegen*dtSec)
	}
	if p.Heat > 0 {
		p.Heat = max(0, p.Heat-heatVent*dtSec)
	}
	if p.Jammed && p.Heat <= 0 {
		p.Jammed = false
	}
	if p.Hidden {
		p.HiddenMs -= int64(math.Round(dtSec * 1000))
		if p.HiddenMs <= 0 {
			p.Hidden, p.HiddenMs = false, 0
		}
	}
	return p
}

// AdvanceGauge fills an action gauge at ratePerSec scaled by speed.
// The result is clamped to 100.
func AdvanceGauge(charge, ratePerSec, speed float64, dtMs int64) float64 {
	if speed <= 0 {
		return charge
	}
	charge += ratePerSec * speed * float64(dtMs) / 1000
	return min(charge, 100)
}
