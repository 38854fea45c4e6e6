// Package content holds the game's reference data: pilots, abilities,
// enemies, affixes, talents, upgrades, consumables, shop items, modules and
// daily modifiers. The catalog is embedded YAML and can be replaced by a file.
package content

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/scrapline/talent"
)

//go:embed content.yaml
var contentYAML []byte

// Resource models an ability can draw on.
const (
	ResourceNone   = "none"
	ResourceEnergy = "energy"
	ResourceHeat   = "heat"
	ResourceBurrow = "burrow"
)

// Enemy intents.
const (
	IntentAttack = "attack"
	IntentHeal   = "heal"
	IntentCharge = "charge"
	IntentDefend = "defend"
)

// Pilot is a playable character.
type Pilot struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Resource   string   `yaml:"resource"` // Primary resource model
	BaseHP     float64  `yaml:"base_hp"`
	BaseDamage float64  `yaml:"base_damage"`
	Speed      float64  `yaml:"speed"` // Action gauge multiplier
	MaxEnergy  float64  `yaml:"max_energy"`
	MaxHeat    float64  `yaml:"max_heat"`
	Abilities  []string `yaml:"abilities"`
}

// Ability is immutable reference data looked up by id.
type Ability struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Class       string  `yaml:"class"` // Matched against enemy weak points
	DamageMult  float64 `yaml:"damage_mult"`
	CooldownMs  int64   `yaml:"cooldown_ms"`
	Resource    string  `yaml:"resource"`
	EnergyCost  float64 `yaml:"energy_cost"`
	HeatCost    float64 `yaml:"heat_cost"`
	AoE         bool    `yaml:"aoe"`
	Stun        bool    `yaml:"stun"`
	StunMs      int64   `yaml:"stun_ms"`
	BurnDamage  float64 `yaml:"burn_damage"` // Per tick
	BurnMs      int64   `yaml:"burn_ms"`
	Shield      float64 `yaml:"shield"`
	ShieldMs    int64   `yaml:"shield_ms"`
	OverdriveMs int64   `yaml:"overdrive_ms"`
}

// DealsDamage reports whether the ability hits enemies.
func (a Ability) DealsDamage() bool {
	return a.DamageMult > 0
}

// IntentWeight is one entry of an enemy's intent table.
type IntentWeight struct {
	Intent string  `yaml:"intent"`
	Weight float64 `yaml:"weight"`
}

// EnemyTemplate describes an enemy archetype before scaling.
type EnemyTemplate struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	HP      float64        `yaml:"hp"`
	Damage  float64        `yaml:"damage"`
	Speed   float64        `yaml:"speed"`
	Scrap   int            `yaml:"scrap"`
	Boss    bool           `yaml:"boss"`
	MinWave int            `yaml:"min_wave"` // Earliest wave/stage it appears
	Intents []IntentWeight `yaml:"intents"`
}

// Affix modifies a spawned enemy.
type Affix struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	HPMult     float64 `yaml:"hp_mult"`
	DamageMult float64 `yaml:"damage_mult"`
	SpeedMult  float64 `yaml:"speed_mult"`
	Armor      float64 `yaml:"armor"`     // Fraction of incoming damage blocked
	Lifesteal  float64 `yaml:"lifesteal"` // Fraction of damage dealt healed
	BurnDamage float64 `yaml:"burn_damage"`
	BurnMs     int64   `yaml:"burn_ms"`
}

// Upgrade is an endless-mode upgrade offered on interval waves.
type Upgrade struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Rarity      string `yaml:"rarity"` // common, rare, legendary
	Description string `yaml:"description"`
}

// Consumable is a single-use item.
type Consumable struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Heal     float64 `yaml:"heal"` // Fraction of max HP
	Energy   float64 `yaml:"energy"`
	Vent     float64 `yaml:"vent"` // Heat removed; also clears the jam latch
	Shield   float64 `yaml:"shield"`
	ShieldMs int64   `yaml:"shield_ms"`
}

// ShopItem is bought with scrap between story stages.
type ShopItem struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Cost       int             `yaml:"cost"`
	Effects    []talent.Effect `yaml:"effects"`
	Consumable string          `yaml:"consumable"` // Grants one of this consumable
}

// Module is a mech frame equipped in a loadout.
type Module struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	HPBonus     float64 `yaml:"hp_bonus"`
	DamageBonus float64 `yaml:"damage_bonus"`
}

// Modifier is a daily rule that alters endless generation or rewards.
type Modifier struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	HazardMult  *float64 `yaml:"hazard_mult" json:"hazardMult,omitempty"` // Unset means 1; 0 turns hazards off
	ExtraEnemy  int      `yaml:"extra_enemies" json:"extraEnemies"`
	HPMult      float64  `yaml:"hp_mult" json:"hpMult"`
	DamageMult  float64  `yaml:"damage_mult" json:"damageMult"`
	ScrapMult   float64  `yaml:"scrap_mult" json:"scrapMult"`
	AffixBonus  float64  `yaml:"affix_bonus" json:"affixBonus"`
}

// Hazard returns the hazard chance multiplier.
func (m Modifier) Hazard() float64 {
	if m.HazardMult == nil {
		return 1
	}
	return max(*m.HazardMult, 0)
}

// Catalog is the full content set plus lookup indexes.
type Catalog struct {
	Pilots      []Pilot          `yaml:"pilots"`
	Abilities   []Ability        `yaml:"abilities"`
	Enemies     []EnemyTemplate  `yaml:"enemies"`
	Affixes     []Affix          `yaml:"affixes"`
	Talents     []talent.Talent  `yaml:"talents"`
	Synergies   []talent.Synergy `yaml:"synergies"`
	Upgrades    []Upgrade        `yaml:"upgrades"`
	Consumables []Consumable     `yaml:"consumables"`
	Shop        []ShopItem       `yaml:"shop"`
	Modules     []Module         `yaml:"modules"`
	Modifiers   []Modifier       `yaml:"modifiers"`

	pilots      map[string]int
	abilities   map[string]int
	enemies     map[string]int
	affixes     map[string]int
	upgrades    map[string]int
	consumables map[string]int
	shop        map[string]int
	modules     map[string]int
	modifiers   map[string]int
	trees       map[string]talent.Tree
}

// Default returns the embedded catalog. It panics if the embedded data is
// invalid, which is a build defect.
func Default() *Catalog {
	c, err := Parse(contentYAML)
	if err != nil {
		panic(fmt.Sprintf("content: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(contentYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and indexes a catalog, then checks cross references.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	c.index()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func indexBy[T any](items []T, id func(T) string) map[string]int {
	m := make(map[string]int, len(items))
	for i, it := range items {
		m[id(it)] = i
	}
	return m
}

func (c *Catalog) index() {
	c.pilots = indexBy(c.Pilots, func(p Pilot) string { return p.ID })
	c.abilities = indexBy(c.Abilities, func(a Ability) string { return a.ID })
	c.enemies = indexBy(c.Enemies, func(e EnemyTemplate) string { return e.ID })
	c.affixes = indexBy(c.Affixes, func(a Affix) string { return a.ID })
	c.upgrades = indexBy(c.Upgrades, func(u Upgrade) string { return u.ID })
	c.consumables = indexBy(c.Consumables, func(x Consumable) string { return x.ID })
	c.shop = indexBy(c.Shop, func(s ShopItem) string { return s.ID })
	c.modules = indexBy(c.Modules, func(m Module) string { return m.ID })
	c.modifiers = indexBy(c.Modifiers, func(m Modifier) string { return m.ID })

	byPilot := make(map[string][]talent.Talent)
	for _, t := range c.Talents {
		byPilot[t.Pilot] = append(byPilot[t.Pilot], t)
	}
	c.trees = make(map[string]talent.Tree, len(byPilot))
	for _, p := range c.Pilots {
		c.trees[p.ID] = talent.NewTree(byPilot[p.ID])
	}
}

// Validate checks that every cross reference resolves.
func (c *Catalog) Validate() error {
	if len(c.Pilots) == 0 {
		return fmt.Errorf("content: no pilots defined")
	}
	for _, p := range c.Pilots {
		for _, id := range p.Abilities {
			if _, ok := c.abilities[id]; !ok {
				return fmt.Errorf("content: pilot %s references unknown ability %s", p.ID, id)
			}
		}
	}
	for _, t := range c.Talents {
		if _, ok := c.pilots[t.Pilot]; !ok {
			return fmt.Errorf("content: talent %s references unknown pilot %s", t.ID, t.Pilot)
		}
		if t.MaxRank < 1 || t.Cost < 0 {
			return fmt.Errorf("content: talent %s has invalid cost/rank", t.ID)
		}
		tree := c.trees[t.Pilot]
		for _, req := range t.Prereqs {
			if _, ok := tree[req]; !ok {
				return fmt.Errorf("content: talent %s requires unknown talent %s", t.ID, req)
			}
		}
	}
	for _, s := range c.Synergies {
		tree := c.trees[s.Pilot]
		for _, req := range s.Requires {
			if _, ok := tree[req]; !ok {
				return fmt.Errorf("content: synergy %s requires unknown talent %s", s.ID, req)
			}
		}
	}
	for _, s := range c.Shop {
		if s.Consumable == "" {
			continue
		}
		if _, ok := c.consumables[s.Consumable]; !ok {
			return fmt.Errorf("content: shop item %s grants unknown consumable %s", s.ID, s.Consumable)
		}
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("content: no modules defined")
	}
	return nil
}

// Pilot looks up a pilot by id.
func (c *Catalog) Pilot(id string) (Pilot, bool) {
	i, ok := c.pilots[id]
	if !ok {
		return Pilot{}, false
	}
	return c.Pilots[i], true
}

// Ability looks up an ability by id.
func (c *Catalog) Ability(id string) (Ability, bool) {
	i, ok := c.abilities[id]
	if !ok {
		return Ability{}, false
	}
	return c.Abilities[i], true
}

// Enemy looks up an enemy template by id.
func (c *Catalog) Enemy(id string) (EnemyTemplate, bool) {
	i, ok := c.enemies[id]
	if !ok {
		return EnemyTemplate{}, false
	}
	return c.Enemies[i], true
}

// Affix looks up an affix by id.
func (c *Catalog) Affix(id string) (Affix, bool) {
	i, ok := c.affixes[id]
	if !ok {
		return Affix{}, false
	}
	return c.Affixes[i], true
}

// Upgrade looks up an upgrade by id.
func (c *Catalog) Upgrade(id string) (Upgrade, bool) {
	i, ok := c.upgrades[id]
	if !ok {
		return Upgrade{}, false
	}
	return c.Upgrades[i], true
}

// Consumable looks up a consumable by id.
func (c *Catalog) Consumable(id string) (Consumable, bool) {
	i, ok := c.consumables[id]
	if !ok {
		return Consumable{}, false
	}
	return c.Consumables[i], true
}

// ShopItem looks up a shop item by id.
func (c *Catalog) ShopItem(id string) (ShopItem, bool) {
	i, ok := c.shop[id]
	if !ok {
		return ShopItem{}, false
	}
	return c.Shop[i], true
}

// Module looks up a module by id, falling back to the first module.
func (c *Catalog) Module(id string) Module {
	if i, ok := c.modules[id]; ok {
		return c.Modules[i]
	}
	return c.Modules[0]
}

// Modifier looks up a daily modifier by id.
func (c *Catalog) Modifier(id string) (Modifier, bool) {
	i, ok := c.modifiers[id]
	if !ok {
		return Modifier{}, false
	}
	return c.Modifiers[i], true
}

// TalentTree returns the pilot's talent tree (empty if the pilot has none).
func (c *Catalog) TalentTree(pilot string) talent.Tree {
	if t, ok := c.trees[pilot]; ok {
		return t
	}
	return talent.Tree{}
}

// TalentTrees returns every pilot's tree keyed by pilot id.
func (c *Catalog) TalentTrees() map[string]talent.Tree {
	return c.trees
}

// SynergiesFor returns the synergies defined for a pilot.
func (c *Catalog) SynergiesFor(pilot string) []talent.Synergy {
	var out []talent.Synergy
	for _, s := range c.Synergies {
		if s.Pilot == pilot {
			out = append(out, s)
		}
	}
	return out
}

// RegularEnemies returns non-boss templates available at the given wave.
func (c *Catalog) RegularEnemies(wave int) []EnemyTemplate {
	var out []EnemyTemplate
	for _, e := range c.Enemies {
		if !e.Boss && e.MinWave <= wave {
			out = append(out, e)
		}
	}
	return out
}

// Bosses returns boss templates available at the given wave.
func (c *Catalog) Bosses(wave int) []EnemyTemplate {
	var out []EnemyTemplate
	for _, e := range c.Enemies {
		if e.Boss && e.MinWave <= wave {
			out = append(out, e)
		}
	}
	return out
}

// UpgradesByRarity returns upgrade ids grouped by rarity.
func (c *Catalog) UpgradesByRarity() map[string][]string {
	out := make(map[string][]string)
	for _, u := range c.Upgrades {
		out[u.Rarity] = append(out[u.Rarity], u.ID)
	}
	return out
}
