package systems

import (
	"testing"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/rng"
)

func baseEnemy(intent string) EnemyActionInput {
	return EnemyActionInput{
		Name:   "Drone",
		HP:     20,
		MaxHP:  40,
		Damage: 10,
		Intent: intent,
		Combat: combatCfg(),
	}
}

func TestResolveEnemyAction_Intents(t *testing.T) {
	cfg := combatCfg()

	tests := []struct {
		name       string
		in         EnemyActionInput
		wantDamage float64
		wantHeal   float64
		wantStance components.Stance
	}{
		{"attack", baseEnemy(content.IntentAttack), 10, 0, components.Stance{}},
		{"heal", baseEnemy(content.IntentHeal), 0, 40 * cfg.HealFraction, components.Stance{}},
		{"charge", baseEnemy(content.IntentCharge), 0, 0, components.Stance{Charged: true}},
		{"defend", baseEnemy(content.IntentDefend), 0, 0, components.Stance{Defending: true}},
		{"unknown falls back to attack", baseEnemy("dance"), 10, 0, components.Stance{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResolveEnemyAction(tt.in)
			if !approx(out.PlayerDamage, tt.wantDamage) {
				t.Errorf("damage = %v, want %v", out.PlayerDamage, tt.wantDamage)
			}
			if !approx(out.EnemyHeal, tt.wantHeal) {
				t.Errorf("heal = %v, want %v", out.EnemyHeal, tt.wantHeal)
			}
			if out.Stance != tt.wantStance {
				t.Errorf("stance = %+v, want %+v", out.Stance, tt.wantStance)
			}
			if out.Log == "" {
				t.Error("empty log")
			}
		})
	}
}

func TestResolveEnemyAction_ChargedAttackConsumesCharge(t *testing.T) {
	in := baseEnemy(content.IntentAttack)
	in.Stance.Charged = true
	out := ResolveEnemyAction(in)

	if !approx(out.PlayerDamage, 10*in.Combat.ChargedMultiplier) {
		t.Errorf("damage = %v, want %v", out.PlayerDamage, 10*in.Combat.ChargedMultiplier)
	}
	if out.Stance.Charged {
		t.Error("charge should be spent")
	}
}

func TestResolveEnemyAction_HiddenPlayerIsMissed(t *testing.T) {
	in := baseEnemy(content.IntentAttack)
	in.Hidden = true
	in.Affix = &components.Affix{ID: "burning", BurnDamage: 2, BurnMs: 1000}
	out := ResolveEnemyAction(in)

	if !out.Missed || out.PlayerDamage != 0 || len(out.PlayerStatuses) != 0 {
		t.Errorf("outcome = %+v, want clean miss", out)
	}
}

func TestResolveEnemyAction_ReductionAndAffixes(t *testing.T) {
	in := baseEnemy(content.IntentAttack)
	in.Reduce = 0.2
	in.Affix = &components.Affix{ID: "vampiric", Lifesteal: 0.5}
	out := ResolveEnemyAction(in)

	if !approx(out.PlayerDamage, 8) {
		t.Errorf("damage = %v, want 8", out.PlayerDamage)
	}
	if !approx(out.EnemyHeal, 4) {
		t.Errorf("lifesteal = %v, want 4", out.EnemyHeal)
	}

	in.Reduce = 5 // clamped
	out = ResolveEnemyAction(in)
	if !approx(out.PlayerDamage, 2.5) {
		t.Errorf("clamped damage = %v, want 2.5", out.PlayerDamage)
	}
}

func TestResolveEnemyAction_BossSignature(t *testing.T) {
	cfg := combatCfg()
	in := baseEnemy(content.IntentDefend)
	in.Boss = &components.Boss{Phase: 1, AbilityReadyAtMs: 5000}
	in.NowMs = 5000

	out := ResolveEnemyAction(in)
	if !out.BossAbility {
		t.Fatal("expected signature attack")
	}
	if !approx(out.PlayerDamage, 10*cfg.BossAbilityMultiplier) {
		t.Errorf("damage = %v", out.PlayerDamage)
	}
	if out.NextBossReady != 5000+int64(cfg.BossAbilityCooldownMs) {
		t.Errorf("next ready = %d", out.NextBossReady)
	}

	in.Boss.Phase = 2
	out = ResolveEnemyAction(in)
	if out.NextBossReady != 5000+int64(cfg.BossAbilityCooldownMs)/2 {
		t.Errorf("phase 2 next ready = %d", out.NextBossReady)
	}

	in.NowMs = 4000
	out = ResolveEnemyAction(in)
	if out.BossAbility || out.Intent != content.IntentDefend {
		t.Errorf("boss should follow intent before cooldown: %+v", out)
	}
}

func TestChooseIntent(t *testing.T) {
	weights := []components.IntentWeight{
		{Kind: content.IntentAttack, Weight: 0.6},
		{Kind: content.IntentHeal, Weight: 0.4},
	}
	if got := ChooseIntent(weights, rng.NewFixed(0.1)); got != content.IntentAttack {
		t.Errorf("roll 0.1 = %s, want attack", got)
	}
	if got := ChooseIntent(weights, rng.NewFixed(0.7)); got != content.IntentHeal {
		t.Errorf("roll 0.7 = %s, want heal", got)
	}
	if got := ChooseIntent(nil, rng.NewFixed(0.5)); got != content.IntentAttack {
		t.Errorf("empty table = %s, want attack", got)
	}
}

func TestBossPhase(t *testing.T) {
	if BossPhase(300, 400, 0.5) != 1 {
		t.Error("above threshold should be phase 1")
	}
	if BossPhase(200, 400, 0.5) != 2 {
		t.Error("at threshold should be phase 2")
	}
}
