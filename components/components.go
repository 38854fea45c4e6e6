// Package components defines the combat state: the player combatant and the
// ECS components attached to enemy entities.
package components

// StatusType tags a status effect.
type StatusType string

const (
	StatusShield    StatusType = "shield"    // Value is remaining absorb
	StatusOverdrive StatusType = "overdrive" // Damage multiplier window
	StatusStun      StatusType = "stun"      // Cannot act
	StatusBurn      StatusType = "burn"      // Value is damage per tick
)

// StatusEffect is an active effect on a combatant.
type StatusEffect struct {
	Type        StatusType `json:"type"`
	RemainingMs int64      `json:"remainingMs"`
	Value       float64    `json:"value,omitempty"`
}

// Player is the player combatant. Owned by the battle and mutated only
// inside a tick.
type Player struct {
	PilotID    string
	HP         float64
	MaxHP      float64
	Energy     float64
	MaxEnergy  float64
	Heat       float64
	MaxHeat    float64
	Jammed     bool // Heat latch: set at max heat, cleared once fully vented
	Hidden     bool // Burrow latch: enemy attacks miss while set
	HiddenMs   int64
	Charge     float64
	Speed      float64
	BaseDamage float64

	Cooldowns map[string]int64 // Ability id -> remaining ms
	Statuses  []StatusEffect
}

// Alive reports whether the player still has HP.
func (p *Player) Alive() bool {
	return p.HP > 0
}

// Cooldown returns the remaining cooldown for an ability.
func (p *Player) Cooldown(abilityID string) int64 {
	if p.Cooldowns == nil {
		return 0
	}
	return p.Cooldowns[abilityID]
}

// SetCooldown starts an ability cooldown.
func (p *Player) SetCooldown(abilityID string, ms int64) {
	if ms <= 0 {
		return
	}
	if p.Cooldowns == nil {
		p.Cooldowns = make(map[string]int64)
	}
	p.Cooldowns[abilityID] = ms
}

// DecayCooldowns reduces every cooldown by elapsed ms and drops finished ones.
func (p *Player) DecayCooldowns(elapsedMs int64) {
	for id, ms := range p.Cooldowns {
		ms -= elapsedMs
		if ms <= 0 {
			delete(p.Cooldowns, id)
			continue
		}
		p.Cooldowns[id] = ms
	}
}

// Enemy holds core enemy stats. Slot keeps spawn order so iteration over
// the ECS world can be sorted deterministically.
type Enemy struct {
	ID       int
	Template string
	Name     string
	HP       float64
	MaxHP    float64
	Speed    float64
	Damage   float64
	Scrap    int
	Slot     int
}

// Alive reports whether the enemy still has HP.
func (e *Enemy) Alive() bool {
	return e.HP > 0
}

// Gauge is an action-charge meter (0-100).
type Gauge struct {
	Charge float64
}

// Intent is the telegraphed next action.
type Intent struct {
	Kind    string
	Weights []IntentWeight
}

// IntentWeight is one weighted intent choice.
type IntentWeight struct {
	Kind   string
	Weight float64
}

// Statuses holds an enemy's active effects.
type Statuses struct {
	List []StatusEffect
}

// Stance holds flags set by defend and charge intents.
type Stance struct {
	Defending bool // Next hit taken is reduced
	Charged   bool // Next attack is amplified
}

// Boss marks a boss enemy.
type Boss struct {
	Phase            int   // 1 until HP crosses the phase threshold
	AbilityReadyAtMs int64 // Battle clock time when the signature attack is ready
}

// Affix modifies an enemy's behavior.
type Affix struct {
	ID         string
	Armor      float64
	Lifesteal  float64
	BurnDamage float64
	BurnMs     int64
}

// WeakPoint amplifies damage from one ability class.
type WeakPoint struct {
	Class      string
	Multiplier float64
}
