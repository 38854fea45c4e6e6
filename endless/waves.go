package endless

import (
	"math"

	"github.com/pthm-cable/scrapline/components"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/rng"
)

// WaveRequest describes the wave to generate.
type WaveRequest struct {
	Wave       int
	Boss       bool
	Difficulty Difficulty
	Modifier   Modifier
}

// WaveGenerator produces the enemy list for a wave. It must be
// deterministic for a given request and random stream.
type WaveGenerator func(req WaveRequest, src rng.Source) []components.EnemySpec

// NewGenerator returns the default generator over a content catalog.
func NewGenerator(cat *content.Catalog, cfg config.EndlessConfig) WaveGenerator {
	classes := abilityClasses(cat)
	return func(req WaveRequest, src rng.Source) []components.EnemySpec {
		return generate(req, src, cat, cfg, classes)
	}
}

// IsBossWave reports whether a wave spawns a boss.
func IsBossWave(wave, every int) bool {
	return every > 0 && wave > 0 && wave%every == 0
}

// EnemyCount returns how many enemies a wave spawns before boss handling.
func EnemyCount(wave int, cfg config.EndlessConfig, mod Modifier) int {
	n := cfg.BaseEnemyCount + int(math.Floor(float64(wave-1)*cfg.CountGrowth))
	if cfg.MaxEnemies > 0 && n > cfg.MaxEnemies {
		n = cfg.MaxEnemies
	}
	return max(1, n+mod.ExtraEnemy)
}

// Scale returns the HP and damage multipliers for a wave.
func Scale(wave int, cfg config.EndlessConfig, d Difficulty, mod Modifier) (hp, dmg float64) {
	step := float64(max(wave-1, 0))
	hp = (1 + cfg.HPGrowth*step) * orOne(d.HPMult) * orOne(mod.HPMult)
	dmg = (1 + cfg.DamageGrowth*step) * orOne(d.DamageMult) * orOne(mod.DamageMult)
	return hp, dmg
}

// AffixChance returns the chance a regular enemy rolls an affix.
func AffixChance(wave int, cfg config.EndlessConfig, mod Modifier) float64 {
	c := cfg.AffixChance + cfg.AffixGrowth*float64(max(wave-1, 0)) + mod.AffixBonus
	if cfg.MaxAffixChance > 0 {
		c = min(c, cfg.MaxAffixChance+mod.AffixBonus)
	}
	return c
}

func generate(req WaveRequest, src rng.Source, cat *content.Catalog, cfg config.EndlessConfig, classes []string) []components.EnemySpec {
	hpScale, dmgScale := Scale(req.Wave, cfg, req.Difficulty, req.Modifier)
	scrapScale := orOne(req.Difficulty.ScrapMult) * orOne(req.Modifier.ScrapMult)
	count := EnemyCount(req.Wave, cfg, req.Modifier)

	var specs []components.EnemySpec
	if req.Boss {
		if bosses := cat.Bosses(req.Wave); len(bosses) > 0 {
			tpl := bosses[src.Intn(len(bosses))]
			specs = append(specs, spawnSpec(tpl, hpScale, dmgScale, scrapScale))
			count = max(count/2, 1)
		}
	}

	pool := cat.RegularEnemies(req.Wave)
	if len(pool) == 0 {
		return specs
	}
	affixChance := AffixChance(req.Wave, cfg, req.Modifier)
	for i := 0; i < count; i++ {
		tpl := pool[src.Intn(len(pool))]
		spec := spawnSpec(tpl, hpScale, dmgScale, scrapScale)

		if len(cat.Affixes) > 0 && src.Float64() < affixChance {
			applyAffix(&spec, cat.Affixes[src.Intn(len(cat.Affixes))])
		}
		if len(classes) > 0 && src.Float64() < cfg.WeakPointChance {
			spec.WeakPoint = &components.WeakPoint{
				Class:      classes[src.Intn(len(classes))],
				Multiplier: orOne(cfg.WeakPointMultiplier),
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

func spawnSpec(tpl content.EnemyTemplate, hpScale, dmgScale, scrapScale float64) components.EnemySpec {
	intents := make([]components.IntentWeight, len(tpl.Intents))
	for i, iw := range tpl.Intents {
		intents[i] = components.IntentWeight{Kind: iw.Intent, Weight: iw.Weight}
	}
	return components.EnemySpec{
		Template: tpl.ID,
		Name:     tpl.Name,
		HP:       math.Round(tpl.HP * hpScale),
		Damage:   tpl.Damage * dmgScale,
		Speed:    tpl.Speed,
		Scrap:    int(math.Round(float64(tpl.Scrap) * scrapScale)),
		Boss:     tpl.Boss,
		Intents:  intents,
	}
}

func applyAffix(spec *components.EnemySpec, a content.Affix) {
	spec.Name = a.Name + " " + spec.Name
	spec.HP = math.Round(spec.HP * orOne(a.HPMult))
	spec.Damage *= orOne(a.DamageMult)
	spec.Speed *= orOne(a.SpeedMult)
	spec.Scrap += max(spec.Scrap/2, 1)
	spec.Affix = &components.Affix{
		ID:         a.ID,
		Armor:      a.Armor,
		Lifesteal:  a.Lifesteal,
		BurnDamage: a.BurnDamage,
		BurnMs:     a.BurnMs,
	}
}

// abilityClasses lists the damage classes in catalog order, deduplicated.
func abilityClasses(cat *content.Catalog) []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range cat.Abilities {
		if a.Class == "" || !a.DealsDamage() || seen[a.Class] {
			continue
		}
		seen[a.Class] = true
		out = append(out, a.Class)
	}
	return out
}

// Hazard is the outcome of a hazard roll at wave spawn.
type Hazard struct {
	Struck bool
	Damage float64
}

// RollHazard decides whether a hazard strikes the player as a wave spawns.
func RollHazard(src rng.Source, maxHP float64, cfg config.EndlessConfig, mod Modifier) Hazard {
	chance := cfg.HazardChance * mod.Hazard()
	if chance <= 0 || src.Float64() >= chance {
		return Hazard{}
	}
	return Hazard{Struck: true, Damage: math.Round(maxHP * cfg.HazardDamage)}
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
