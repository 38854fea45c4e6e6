package systems

import (
	"fmt"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/rng"
)

// EnemyActionInput is the state an enemy acts on.
type EnemyActionInput struct {
	Name   string
	HP     float64
	MaxHP  float64
	Damage float64
	Intent string
	Stance components.Stance
	Affix  *components.Affix
	Boss   *components.Boss
	NowMs  int64   // Battle clock
	Hidden bool    // Player is burrowed
	Reduce float64 // Player damage reduction fraction
	Combat config.CombatConfig
}

// EnemyOutcome is the result of one enemy action. PlayerDamage is before
// shields; the caller soaks it with AbsorbWithShield.
type EnemyOutcome struct {
	Intent         string
	PlayerDamage   float64
	Missed         bool
	EnemyHeal      float64
	Stance         components.Stance
	PlayerStatuses []components.StatusEffect
	BossAbility    bool
	NextBossReady  int64
	Log            string
}

// IntentStrategy resolves one kind of enemy intent.
type IntentStrategy func(in EnemyActionInput) EnemyOutcome

// IntentStrategies maps an intent to its resolution.
var IntentStrategies = map[string]IntentStrategy{
	content.IntentAttack: resolveAttack,
	content.IntentHeal:   resolveHeal,
	content.IntentCharge: resolveCharge,
	content.IntentDefend: resolveDefend,
}

// ResolveEnemyAction resolves an enemy whose gauge is full. A boss with its
// signature attack ready uses it instead of the telegraphed intent. The
// defend stance only lasts until the enemy acts again.
func ResolveEnemyAction(in EnemyActionInput) EnemyOutcome {
	in.Stance.Defending = false

	if in.Boss != nil && in.NowMs >= in.Boss.AbilityReadyAtMs {
		out := hitPlayer(in, in.Combat.BossAbilityMultiplier)
		out.Intent = content.IntentAttack
		out.BossAbility = true
		cooldown := int64(in.Combat.BossAbilityCooldownMs)
		if in.Boss.Phase >= 2 {
			cooldown /= 2
		}
		out.NextBossReady = in.NowMs + cooldown
		out.Log = fmt.Sprintf("%s unleashes its signature attack: %s", in.Name, out.Log)
		return out
	}

	strategy, ok := IntentStrategies[in.Intent]
	if !ok {
		strategy = resolveAttack
	}
	out := strategy(in)
	if out.Intent == "" {
		out.Intent = in.Intent
	}
	return out
}

func resolveAttack(in EnemyActionInput) EnemyOutcome {
	out := hitPlayer(in, 1)
	out.Intent = content.IntentAttack
	out.Log = fmt.Sprintf("%s attacks: %s", in.Name, out.Log)
	return out
}

// hitPlayer applies the attack damage pipeline: charge bonus, burrow miss,
// damage reduction, lifesteal and burning affix.
func hitPlayer(in EnemyActionInput, mult float64) EnemyOutcome {
	out := EnemyOutcome{Stance: in.Stance}
	dmg := in.Damage * mult
	if in.Stance.Charged {
		dmg *= in.Combat.ChargedMultiplier
		out.Stance.Charged = false
	}
	if in.Hidden {
		out.Missed = true
		out.Log = "missed, target is burrowed"
		return out
	}
	reduce := min(max(in.Reduce, 0), 0.75)
	dmg *= 1 - reduce
	out.PlayerDamage = dmg

	if in.Affix != nil {
		if in.Affix.Lifesteal > 0 {
			out.EnemyHeal = min(dmg*in.Affix.Lifesteal, in.MaxHP-in.HP)
		}
		if in.Affix.BurnDamage > 0 && in.Affix.BurnMs > 0 {
			out.PlayerStatuses = append(out.PlayerStatuses, components.StatusEffect{
				Type: components.StatusBurn, RemainingMs: in.Affix.BurnMs, Value: in.Affix.BurnDamage,
			})
		}
	}
	out.Log = fmt.Sprintf("%.0f damage", dmg)
	return out
}

func resolveHeal(in EnemyActionInput) EnemyOutcome {
	heal := min(in.MaxHP*in.Combat.HealFraction, in.MaxHP-in.HP)
	heal = max(heal, 0)
	return EnemyOutcome{
		Intent:    content.IntentHeal,
		EnemyHeal: heal,
		Stance:    in.Stance,
		Log:       fmt.Sprintf("%s repairs %.0f HP", in.Name, heal),
	}
}

func resolveCharge(in EnemyActionInput) EnemyOutcome {
	st := in.Stance
	st.Charged = true
	return EnemyOutcome{
		Intent: content.IntentCharge,
		Stance: st,
		Log:    fmt.Sprintf("%s is charging up", in.Name),
	}
}

func resolveDefend(in EnemyActionInput) EnemyOutcome {
	st := in.Stance
	st.Defending = true
	return EnemyOutcome{
		Intent: content.IntentDefend,
		Stance: st,
		Log:    fmt.Sprintf("%s raises its guard", in.Name),
	}
}

// ChooseIntent picks the next telegraphed intent from weighted choices.
// Defaults to attack when the table is empty.
func ChooseIntent(weights []components.IntentWeight, src rng.Source) string {
	if len(weights) == 0 {
		return content.IntentAttack
	}
	w := make([]float64, len(weights))
	for i, iw := range weights {
		w[i] = iw.Weight
	}
	idx := rng.WeightedIndex(src, w)
	if idx < 0 {
		return content.IntentAttack
	}
	return weights[idx].Kind
}

// BossPhase returns the phase for a boss at the given HP.
func BossPhase(hp, maxHP, threshold float64) int {
	if maxHP > 0 && hp/maxHP <= threshold {
		return 2
	}
	return 1
}
