// Package telemetry provides combat event tracking, lifetime game stats, the
// endless leaderboard, and CSV output.
package telemetry

// EventType identifies telemetry events.
type EventType uint8

const (
	EventAbility EventType = iota
	EventConsumable
	EventRejected
	EventDamageDealt
	EventDamageTaken
	EventMiss
	EventKill
	EventStatusExpired
	EventHazard
	EventWaveCleared
	EventDefeat
)

var eventNames = [...]string{
	EventAbility:       "ability",
	EventConsumable:    "consumable",
	EventRejected:      "rejected",
	EventDamageDealt:   "damage_dealt",
	EventDamageTaken:   "damage_taken",
	EventMiss:          "miss",
	EventKill:          "kill",
	EventStatusExpired: "status_expired",
	EventHazard:        "hazard",
	EventWaveCleared:   "wave_cleared",
	EventDefeat:        "defeat",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// PlayerID is the EntityID used for events about the player.
const PlayerID = 0

// Event represents a single combat event emitted by a battle tick.
type Event struct {
	Type     EventType
	TimeMs   int64 // Battle clock
	EntityID int   // Enemy id, or PlayerID

	// Optional fields depending on event type
	Ref    string  // ability, consumable, enemy template or status id
	Amount float64 // damage dealt or taken
	Crit   bool
	Boss   bool
	Scrap  int
}

// NewAbilityEvent creates an event for a resolved player ability.
func NewAbilityEvent(timeMs int64, abilityID string, crit bool) Event {
	return Event{
		Type:     EventAbility,
		TimeMs:   timeMs,
		EntityID: PlayerID,
		Ref:      abilityID,
		Crit:     crit,
	}
}

// NewConsumableEvent creates an event for a used consumable.
func NewConsumableEvent(timeMs int64, consumableID string) Event {
	return Event{
		Type:     EventConsumable,
		TimeMs:   timeMs,
		EntityID: PlayerID,
		Ref:      consumableID,
	}
}

// NewRejectedEvent creates an event for a player action that was refused.
func NewRejectedEvent(timeMs int64, ref string) Event {
	return Event{
		Type:     EventRejected,
		TimeMs:   timeMs,
		EntityID: PlayerID,
		Ref:      ref,
	}
}

// NewDamageDealtEvent creates an event for damage landed on an enemy.
func NewDamageDealtEvent(timeMs int64, enemyID int, source string, amount float64, crit bool) Event {
	return Event{
		Type:     EventDamageDealt,
		TimeMs:   timeMs,
		EntityID: enemyID,
		Ref:      source,
		Amount:   amount,
		Crit:     crit,
	}
}

// NewDamageTakenEvent creates an event for damage taken by the player.
// enemyID is PlayerID for burns and hazards.
func NewDamageTakenEvent(timeMs int64, enemyID int, source string, amount float64) Event {
	return Event{
		Type:     EventDamageTaken,
		TimeMs:   timeMs,
		EntityID: enemyID,
		Ref:      source,
		Amount:   amount,
	}
}

// NewMissEvent creates an event for an enemy attack that missed.
func NewMissEvent(timeMs int64, enemyID int) Event {
	return Event{
		Type:     EventMiss,
		TimeMs:   timeMs,
		EntityID: enemyID,
	}
}

// NewKillEvent creates a kill event.
func NewKillEvent(timeMs int64, enemyID int, template string, boss bool, scrap int) Event {
	return Event{
		Type:     EventKill,
		TimeMs:   timeMs,
		EntityID: enemyID,
		Ref:      template,
		Boss:     boss,
		Scrap:    scrap,
	}
}

// NewStatusExpiredEvent creates an event for a status that ran out.
func NewStatusExpiredEvent(timeMs int64, entityID int, status string) Event {
	return Event{
		Type:     EventStatusExpired,
		TimeMs:   timeMs,
		EntityID: entityID,
		Ref:      status,
	}
}

// NewHazardEvent creates an event for a hazard strike at wave spawn.
func NewHazardEvent(timeMs int64, amount float64) Event {
	return Event{
		Type:     EventHazard,
		TimeMs:   timeMs,
		EntityID: PlayerID,
		Amount:   amount,
	}
}

// NewWaveClearedEvent creates a wave cleared event.
func NewWaveClearedEvent(timeMs int64) Event {
	return Event{Type: EventWaveCleared, TimeMs: timeMs}
}

// NewDefeatEvent creates a defeat event.
func NewDefeatEvent(timeMs int64, killerID int) Event {
	return Event{Type: EventDefeat, TimeMs: timeMs, EntityID: killerID}
}
