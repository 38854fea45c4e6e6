package systems

import "github.com/pthm-cable/scrapline/components"

// StatusTick reports what a status pass did.
type StatusTick struct {
	Damage  float64                 // Burn damage dealt this tick
	Expired []components.StatusType // Statuses dropped this tick
}

// ProcessStatuses runs one tick of status effects. Per-tick values are
// applied before durations are decremented, so a burn on its last tick
// still deals damage. The returned slice reuses the input's backing array.
func ProcessStatuses(list []components.StatusEffect, elapsedMs int64) ([]components.StatusEffect, StatusTick) {
	var tick StatusTick
	kept := list[:0]
	for _, s := range list {
		if s.Type == components.StatusBurn {
			tick.Damage += s.Value
		}
		s.RemainingMs -= elapsedMs
		if s.RemainingMs <= 0 {
			tick.Expired = append(tick.Expired, s.Type)
			continue
		}
		kept = append(kept, s)
	}
	return kept, tick
}

// ApplyStatus adds an effect. An effect of the same type is refreshed: its
// duration and value are overwritten and no second entry is created.
func ApplyStatus(list []components.StatusEffect, effect components.StatusEffect) []components.StatusEffect {
	if effect.RemainingMs <= 0 {
		return list
	}
	for i := range list {
		if list[i].Type == effect.Type {
			list[i].RemainingMs = effect.RemainingMs
			list[i].Value = effect.Value
			return list
		}
	}
	return append(list, effect)
}

// HasStatus reports whether a status type is active.
func HasStatus(list []components.StatusEffect, t components.StatusType) bool {
	for _, s := range list {
		if s.Type == t {
			return true
		}
	}
	return false
}

// StatusValue returns the value of an active status, 0 if absent.
func StatusValue(list []components.StatusEffect, t components.StatusType) float64 {
	for _, s := range list {
		if s.Type == t {
			return s.Value
		}
	}
	return 0
}

// RemoveStatus drops a status type if present.
func RemoveStatus(list []components.StatusEffect, t components.StatusType) []components.StatusEffect {
	kept := list[:0]
	for _, s := range list {
		if s.Type != t {
			kept = append(kept, s)
		}
	}
	return kept
}

// AbsorbWithShield soaks damage with an active shield. A depleted shield is
// removed. Returns the updated list, the damage left over and the amount
// absorbed.
func AbsorbWithShield(list []components.StatusEffect, damage float64) ([]components.StatusEffect, float64, float64) {
	if damage <= 0 {
		return list, 0, 0
	}
	for i := range list {
		if list[i].Type != components.StatusShield {
			continue
		}
		absorbed := min(list[i].Value, damage)
		list[i].Value -= absorbed
		if list[i].Value <= 0 {
			list = append(list[:i], list[i+1:]...)
		}
		return list, damage - absorbed, absorbed
	}
	return list, damage, 0
}
