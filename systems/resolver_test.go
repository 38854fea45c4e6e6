package systems

import (
	"math"
	"strings"
	"testing"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/talent"
)

func combatCfg() config.CombatConfig {
	return config.Default().Combat
}

func threeEnemies() []EnemyView {
	return []EnemyView{
		{HP: 40, Alive: true},
		{HP: 25, Alive: true},
		{HP: 60, Alive: true},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// ---------- Targeting ----------

func TestSelectTargets(t *testing.T) {
	tests := []struct {
		name    string
		enemies []EnemyView
		aoe     bool
		want    []int
	}{
		{"lowest hp", threeEnemies(), false, []int{1}},
		{"tie goes to first", []EnemyView{{HP: 10, Alive: true}, {HP: 10, Alive: true}}, false, []int{0}},
		{"skips dead", []EnemyView{{HP: 0, Alive: false}, {HP: 30, Alive: true}}, false, []int{1}},
		{"aoe all alive", []EnemyView{{HP: 5, Alive: true}, {HP: 0}, {HP: 9, Alive: true}}, true, []int{0, 2}},
		{"none alive", []EnemyView{{HP: 0}}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectTargets(tt.enemies, tt.aoe)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// ---------- Damage ----------

func TestResolveAbility_AoEHitsAllEqually(t *testing.T) {
	ab := content.Ability{ID: "arc", Name: "Arc", DamageMult: 1.0, Resource: content.ResourceEnergy, EnergyCost: 30, AoE: true}
	out := ResolveAbility(AbilityInput{
		Ability:    ab,
		BaseDamage: 12,
		Pools:      Pools{Energy: 50, MaxEnergy: 100},
		Enemies:    threeEnemies(),
		CritRoll:   0.99,
		Combat:     combatCfg(),
	})

	if !out.Consumed {
		t.Fatalf("not consumed: %s", out.Log)
	}
	if len(out.Targets) != 3 {
		t.Fatalf("targets = %v, want 3", out.Targets)
	}
	for _, idx := range out.Targets {
		if out.PerTarget[idx] != 12 {
			t.Errorf("target %d took %v, want 12", idx, out.PerTarget[idx])
		}
	}
	if out.Pools.Energy != 20 {
		t.Errorf("energy = %v, want 20", out.Pools.Energy)
	}
}

func TestResolveAbility_TalentBonusesApplyBeforeMultiplier(t *testing.T) {
	ab := content.Ability{Name: "Lance", DamageMult: 2, Resource: content.ResourceNone}
	bonuses := talent.Bonuses{talent.EffectDamageFlat: 3, talent.EffectDamagePct: 0.5}

	out := ResolveAbility(AbilityInput{
		Ability:    ab,
		BaseDamage: 10,
		Enemies:    threeEnemies(),
		Bonuses:    bonuses,
		CritRoll:   0.99,
		Combat:     combatCfg(),
	})

	// (10 + 3) * 1.5 * 2
	if !approx(out.Damage, 39) {
		t.Errorf("damage = %v, want 39", out.Damage)
	}
	if len(out.Targets) != 1 || out.Targets[0] != 1 {
		t.Errorf("targets = %v, want [1]", out.Targets)
	}
}

func TestResolveAbility_CritAndOverdrive(t *testing.T) {
	cfg := combatCfg()
	ab := content.Ability{Name: "Strike", DamageMult: 1, Resource: content.ResourceNone}
	bonuses := talent.Bonuses{talent.EffectCritChance: 0.5, talent.EffectCritDamage: 0.5}

	out := ResolveAbility(AbilityInput{
		Ability: ab, BaseDamage: 10, Enemies: threeEnemies(), Bonuses: bonuses,
		CritRoll: 0.1, Overdrive: true, Combat: cfg,
	})

	want := 10 * (cfg.CritMultiplier + 0.5) * cfg.OverdriveMultiplier
	if !out.Crit || !approx(out.Damage, want) {
		t.Errorf("crit %v damage %v, want crit with %v", out.Crit, out.Damage, want)
	}

	out = ResolveAbility(AbilityInput{
		Ability: ab, BaseDamage: 10, Enemies: threeEnemies(), Bonuses: bonuses,
		CritRoll: 0.6, Combat: cfg,
	})
	if out.Crit || out.Damage != 10 {
		t.Errorf("roll above chance: crit %v damage %v", out.Crit, out.Damage)
	}
}

func TestResolveAbility_WeakPointArmorDefend(t *testing.T) {
	cfg := combatCfg()
	ab := content.Ability{Name: "Flame", Class: "fire", DamageMult: 1, Resource: content.ResourceNone, AoE: true}
	enemies := []EnemyView{
		{HP: 50, Alive: true, WeakPoint: &components.WeakPoint{Class: "fire", Multiplier: 1.5}},
		{HP: 50, Alive: true, WeakPoint: &components.WeakPoint{Class: "cryo", Multiplier: 1.5}},
		{HP: 50, Alive: true, Armor: 0.3},
		{HP: 50, Alive: true, Defending: true},
	}

	out := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 10, Enemies: enemies, CritRoll: 1, Combat: cfg})

	if !approx(out.PerTarget[0], 15) {
		t.Errorf("weak point hit = %v, want 15", out.PerTarget[0])
	}
	if !approx(out.PerTarget[1], 10) {
		t.Errorf("wrong class = %v, want 10", out.PerTarget[1])
	}
	if !approx(out.PerTarget[2], 7) {
		t.Errorf("armored = %v, want 7", out.PerTarget[2])
	}
	if !approx(out.PerTarget[3], 10*(1-cfg.DefendReduction)) {
		t.Errorf("defending = %v", out.PerTarget[3])
	}
	if !out.WeakHit {
		t.Error("expected WeakHit")
	}
}

func TestResolveAbility_StatusPayloads(t *testing.T) {
	ab := content.Ability{Name: "Inferno", DamageMult: 1, Resource: content.ResourceNone,
		Stun: true, StunMs: 1000, BurnDamage: 2, BurnMs: 3000}
	out := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 5, Enemies: threeEnemies(), CritRoll: 1, Combat: combatCfg()})

	if len(out.TargetStatuses) != 2 {
		t.Fatalf("target statuses = %v", out.TargetStatuses)
	}

	shield := content.Ability{Name: "Barrier", Resource: content.ResourceNone, Shield: 40, ShieldMs: 5000}
	out = ResolveAbility(AbilityInput{Ability: shield, Enemies: threeEnemies(), Combat: combatCfg()})
	if !out.Consumed || len(out.Targets) != 0 {
		t.Fatalf("barrier consumed %v targets %v", out.Consumed, out.Targets)
	}
	if len(out.SelfStatuses) != 1 || out.SelfStatuses[0].Type != components.StatusShield {
		t.Errorf("self statuses = %v", out.SelfStatuses)
	}
}

// ---------- Fail soft ----------

func TestResolveAbility_Rejections(t *testing.T) {
	cfg := combatCfg()
	tests := []struct {
		name    string
		ability content.Ability
		pools   Pools
		enemies []EnemyView
		wantLog string
	}{
		{
			name:    "energy short",
			ability: content.Ability{Name: "Lance", DamageMult: 1, Resource: content.ResourceEnergy, EnergyCost: 20},
			pools:   Pools{Energy: 10, MaxEnergy: 100},
			enemies: threeEnemies(),
			wantLog: "not enough energy",
		},
		{
			name:    "jammed",
			ability: content.Ability{Name: "Jet", DamageMult: 1, Resource: content.ResourceHeat, HeatCost: 10},
			pools:   Pools{Heat: 100, MaxHeat: 100, Jammed: true},
			enemies: threeEnemies(),
			wantLog: "jammed",
		},
		{
			name:    "burrowed",
			ability: content.Ability{Name: "Drill", DamageMult: 1, Resource: content.ResourceEnergy},
			pools:   Pools{Energy: 50, Hidden: true},
			enemies: threeEnemies(),
			wantLog: "burrowed",
		},
		{
			name:    "no targets",
			ability: content.Ability{Name: "Strike", DamageMult: 1, Resource: content.ResourceNone},
			enemies: []EnemyView{{HP: 0}},
			wantLog: "no target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResolveAbility(AbilityInput{Ability: tt.ability, BaseDamage: 10, Pools: tt.pools, Enemies: tt.enemies, Combat: cfg})
			if out.Consumed {
				t.Fatal("expected rejection")
			}
			if out.Pools != tt.pools {
				t.Errorf("pools changed: %+v -> %+v", tt.pools, out.Pools)
			}
			if !strings.Contains(out.Log, tt.wantLog) {
				t.Errorf("log %q missing %q", out.Log, tt.wantLog)
			}
			if len(out.Targets) != 0 || out.Damage != 0 {
				t.Error("rejected action produced damage")
			}
		})
	}
}

// ---------- Resource models ----------

func TestHeatLatchesJam(t *testing.T) {
	ab := content.Ability{Name: "Jet", DamageMult: 1, Resource: content.ResourceHeat, HeatCost: 40}
	out := ResolveAbility(AbilityInput{
		Ability: ab, BaseDamage: 10, Pools: Pools{Heat: 70, MaxHeat: 100},
		Enemies: threeEnemies(), CritRoll: 1, Combat: combatCfg(),
	})
	if !out.Consumed {
		t.Fatalf("rejected: %s", out.Log)
	}
	if !out.Pools.Jammed || out.Pools.Heat != 100 {
		t.Errorf("pools = %+v, want jammed at 100", out.Pools)
	}

	p := RegenPools(out.Pools, 0, 50, 1)
	if !p.Jammed {
		t.Error("jam should hold until heat is fully vented")
	}
	p = RegenPools(p, 0, 50, 1)
	if p.Jammed || p.Heat != 0 {
		t.Errorf("pools = %+v, want vented and unjammed", p)
	}
}

func TestBurrowToggle(t *testing.T) {
	cfg := combatCfg()
	ab := content.Ability{Name: "Burrow", DamageMult: 1, Resource: content.ResourceBurrow}

	down := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 10, Enemies: threeEnemies(), CritRoll: 1, Combat: cfg})
	if !down.Consumed || !down.Pools.Hidden || down.Damage != 0 {
		t.Fatalf("burrow down: %+v", down)
	}

	up := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 10, Pools: down.Pools, Enemies: threeEnemies(), CritRoll: 1, Combat: cfg})
	if !up.Consumed || up.Pools.Hidden {
		t.Fatalf("burrow up: %+v", up)
	}
	if !approx(up.Damage, 10*cfg.BurrowStrikeMultiplier) {
		t.Errorf("emerge damage = %v, want %v", up.Damage, 10*cfg.BurrowStrikeMultiplier)
	}
}

func TestBurrowWindowExpires(t *testing.T) {
	cfg := combatCfg()
	cfg.BurrowMs = 1000
	ab := content.Ability{Name: "Burrow", DamageMult: 1, Resource: content.ResourceBurrow}

	down := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 10, Enemies: threeEnemies(), CritRoll: 1, Combat: cfg})
	if down.Pools.HiddenMs != 1000 {
		t.Fatalf("hidden ms = %d, want 1000", down.Pools.HiddenMs)
	}

	p := RegenPools(down.Pools, 0, 0, 0.6)
	if !p.Hidden || p.HiddenMs != 400 {
		t.Fatalf("pools = %+v, want hidden with 400ms left", p)
	}
	p = RegenPools(p, 0, 0, 0.6)
	if p.Hidden || p.HiddenMs != 0 {
		t.Errorf("pools = %+v, want surfaced", p)
	}

	up := ResolveAbility(AbilityInput{Ability: ab, BaseDamage: 10, Pools: down.Pools, Enemies: threeEnemies(), CritRoll: 1, Combat: cfg})
	if up.Pools.Hidden || up.Pools.HiddenMs != 0 {
		t.Errorf("emerge left pools %+v", up.Pools)
	}
}

func TestAdvanceGauge(t *testing.T) {
	if got := AdvanceGauge(0, 25, 1, 1000); got != 25 {
		t.Errorf("got %v, want 25", got)
	}
	if got := AdvanceGauge(90, 25, 2, 1000); got != 100 {
		t.Errorf("got %v, want clamp at 100", got)
	}
	if got := AdvanceGauge(10, 25, 0, 1000); got != 10 {
		t.Errorf("zero speed moved gauge: %v", got)
	}
}
