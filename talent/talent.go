// Package talent implements the per-pilot talent trees: unlocking with
// prerequisites and ranks, refunds, synergies, and saved presets.
//
// The point pool is shared by every pilot. The engine keeps
//
//	AvailablePoints + sum(pilot.TotalPointsSpent) == TotalPointsEarned
//
// after every operation; rejected operations leave the state untouched.
package talent

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Rejection reasons.
var (
	ErrNotEnoughPoints     = errors.New("not enough talent points")
	ErrMaxRank             = errors.New("talent already at max rank")
	ErrPrerequisitesNotMet = errors.New("prerequisites not met")
	ErrUnknownTalent       = errors.New("unknown talent")
	ErrUnknownPreset       = errors.New("unknown preset")
	ErrPresetTooExpensive  = errors.New("preset costs more than available points")
)

// Effect types understood by the combat resolver and session.
const (
	EffectDamageFlat         = "damage_flat"
	EffectDamagePct          = "damage_pct"
	EffectCritChance         = "crit_chance"
	EffectCritDamage         = "crit_damage"
	EffectMaxHPFlat          = "max_hp_flat"
	EffectMaxHPPct           = "max_hp_pct"
	EffectDamageReductionPct = "damage_reduction_pct"
	EffectEnergyRegenPct     = "energy_regen_pct"
	EffectHeatVentPct        = "heat_vent_pct"
	EffectCooldownPct        = "cooldown_reduction_pct"
	EffectChargeSpeedPct     = "charge_speed_pct"
	EffectScrapPct           = "scrap_pct"
)

// Effect is one typed bonus granted per rank.
type Effect struct {
	Type  string  `yaml:"type" json:"type"`
	Value float64 `yaml:"value" json:"value"`
}

// Position places a talent in the tree grid. Layout only.
type Position struct {
	Row int `yaml:"row" json:"row"`
	Col int `yaml:"col" json:"col"`
}

// Talent is immutable reference data for one tree node.
type Talent struct {
	ID       string   `yaml:"id"`
	Pilot    string   `yaml:"pilot"`
	Name     string   `yaml:"name"`
	Tier     int      `yaml:"tier"`
	Cost     int      `yaml:"cost"`
	MaxRank  int      `yaml:"max_rank"`
	Effects  []Effect `yaml:"effects"`
	Prereqs  []string `yaml:"prereqs"`
	Position Position `yaml:"position"`
}

// Synergy grants extra effects while every required talent is unlocked.
type Synergy struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Pilot    string   `yaml:"pilot"`
	Requires []string `yaml:"requires"`
	Effects  []Effect `yaml:"effects"`
}

// Tree indexes one pilot's talents by id.
type Tree map[string]Talent

// NewTree builds a tree from a talent list.
func NewTree(talents []Talent) Tree {
	t := make(Tree, len(talents))
	for _, tal := range talents {
		t[tal.ID] = tal
	}
	return t
}

// Bonuses maps effect type to the summed value.
type Bonuses map[string]float64

// Get returns the bonus for an effect type, 0 if absent.
func (b Bonuses) Get(effect string) float64 {
	if b == nil {
		return 0
	}
	return b[effect]
}

// Preset is a named snapshot of a pilot's ranks.
type Preset struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Talents   map[string]int `json:"talents"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PilotTalents is one pilot's progress.
type PilotTalents struct {
	Unlocked         map[string]int `json:"unlockedTalents"`
	TotalPointsSpent int            `json:"totalPointsSpent"`
	Presets          []Preset       `json:"presets"`
}

// State is the persisted talent state for all pilots.
type State struct {
	AvailablePoints   int                      `json:"availablePoints"`
	TotalPointsEarned int                      `json:"totalPointsEarned"`
	Pilots            map[string]*PilotTalents `json:"pilots"`
}

// NewState returns an empty talent state.
func NewState() *State {
	return &State{Pilots: make(map[string]*PilotTalents)}
}

func (s *State) pilot(id string) *PilotTalents {
	if s.Pilots == nil {
		s.Pilots = make(map[string]*PilotTalents)
	}
	p, ok := s.Pilots[id]
	if !ok {
		p = &PilotTalents{Unlocked: make(map[string]int)}
		s.Pilots[id] = p
	}
	if p.Unlocked == nil {
		p.Unlocked = make(map[string]int)
	}
	return p
}

// AwardPoints adds n points to the shared pool and the earned counter.
func (s *State) AwardPoints(n int) {
	if n <= 0 {
		return
	}
	s.AvailablePoints += n
	s.TotalPointsEarned += n
}

// Rank returns the pilot's current rank in a talent.
func (s *State) Rank(pilot, id string) int {
	p, ok := s.Pilots[pilot]
	if !ok {
		return 0
	}
	return p.Unlocked[id]
}

// Spent returns the points the pilot has invested.
func (s *State) Spent(pilot string) int {
	p, ok := s.Pilots[pilot]
	if !ok {
		return 0
	}
	return p.TotalPointsSpent
}

// CanUnlock reports why Unlock would be rejected, or nil if it would succeed.
func (s *State) CanUnlock(pilot, id string, tree Tree) error {
	tal, ok := tree[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTalent, id)
	}
	if s.Rank(pilot, id) >= tal.MaxRank {
		return fmt.Errorf("%w: %s", ErrMaxRank, id)
	}
	for _, req := range tal.Prereqs {
		if s.Rank(pilot, req) < 1 {
			return fmt.Errorf("%w: %s requires %s", ErrPrerequisitesNotMet, id, req)
		}
	}
	if s.AvailablePoints < tal.Cost {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPoints, tal.Cost, s.AvailablePoints)
	}
	return nil
}

// Unlock spends points to raise a talent by one rank and returns the new rank.
func (s *State) Unlock(pilot, id string, tree Tree) (int, error) {
	if err := s.CanUnlock(pilot, id, tree); err != nil {
		return s.Rank(pilot, id), err
	}
	tal := tree[id]
	p := s.pilot(pilot)
	s.AvailablePoints -= tal.Cost
	p.TotalPointsSpent += tal.Cost
	p.Unlocked[id]++
	return p.Unlocked[id], nil
}

// Reset clears a pilot's ranks and refunds exactly what they spent.
// Presets and other pilots are untouched.
func (s *State) Reset(pilot string) int {
	p, ok := s.Pilots[pilot]
	if !ok {
		return 0
	}
	refund := p.TotalPointsSpent
	s.AvailablePoints += refund
	p.TotalPointsSpent = 0
	p.Unlocked = make(map[string]int)
	return refund
}

// CalculateBonuses folds every unlocked talent's effects, times its rank.
func (s *State) CalculateBonuses(pilot string, tree Tree) Bonuses {
	b := make(Bonuses)
	p, ok := s.Pilots[pilot]
	if !ok {
		return b
	}
	for id, rank := range p.Unlocked {
		tal, ok := tree[id]
		if !ok || rank <= 0 {
			continue
		}
		for _, e := range tal.Effects {
			b[e.Type] += e.Value * float64(rank)
		}
	}
	return b
}

// ActiveSynergies returns the synergies whose required talents are all
// unlocked for the pilot. Results keep the input order.
func (s *State) ActiveSynergies(pilot string, synergies []Synergy) []Synergy {
	var active []Synergy
	for _, syn := range synergies {
		if syn.Pilot != "" && syn.Pilot != pilot {
			continue
		}
		if len(syn.Requires) == 0 {
			continue
		}
		met := true
		for _, req := range syn.Requires {
			if s.Rank(pilot, req) < 1 {
				met = false
				break
			}
		}
		if met {
			active = append(active, syn)
		}
	}
	return active
}

// TotalBonuses is CalculateBonuses plus the effects of active synergies.
func (s *State) TotalBonuses(pilot string, tree Tree, synergies []Synergy) Bonuses {
	b := s.CalculateBonuses(pilot, tree)
	for _, syn := range s.ActiveSynergies(pilot, synergies) {
		for _, e := range syn.Effects {
			b[e.Type] += e.Value
		}
	}
	return b
}

// SavePreset snapshots the pilot's current ranks under a new id.
func (s *State) SavePreset(pilot, name string, now time.Time) Preset {
	p := s.pilot(pilot)
	snap := make(map[string]int, len(p.Unlocked))
	for id, rank := range p.Unlocked {
		snap[id] = rank
	}
	preset := Preset{
		ID:        uuid.NewString(),
		Name:      name,
		Talents:   snap,
		CreatedAt: now,
	}
	p.Presets = append(p.Presets, preset)
	return preset
}

// LoadPreset replaces the pilot's ranks with a saved preset. The pilot's
// current spend is refunded first; the load is refused if the refunded pool
// still cannot pay for the preset. Nothing changes on rejection.
func (s *State) LoadPreset(pilot, presetID string, tree Tree) error {
	p, ok := s.Pilots[pilot]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, presetID)
	}
	var preset *Preset
	for i := range p.Presets {
		if p.Presets[i].ID == presetID {
			preset = &p.Presets[i]
			break
		}
	}
	if preset == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, presetID)
	}

	cost := 0
	for id, rank := range preset.Talents {
		tal, ok := tree[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTalent, id)
		}
		if rank > tal.MaxRank {
			return fmt.Errorf("%w: %s", ErrMaxRank, id)
		}
		cost += tal.Cost * rank
	}

	pool := s.AvailablePoints + p.TotalPointsSpent
	if pool < cost {
		return fmt.Errorf("%w: need %d, have %d", ErrPresetTooExpensive, cost, pool)
	}

	unlocked := make(map[string]int, len(preset.Talents))
	for id, rank := range preset.Talents {
		if rank > 0 {
			unlocked[id] = rank
		}
	}
	s.AvailablePoints = pool - cost
	p.TotalPointsSpent = cost
	p.Unlocked = unlocked
	return nil
}

// DeletePreset removes a preset without touching live progress.
func (s *State) DeletePreset(pilot, presetID string) error {
	p, ok := s.Pilots[pilot]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, presetID)
	}
	for i := range p.Presets {
		if p.Presets[i].ID == presetID {
			p.Presets = append(p.Presets[:i], p.Presets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPreset, presetID)
}

// Presets returns the pilot's presets, oldest first.
func (s *State) Presets(pilot string) []Preset {
	p, ok := s.Pilots[pilot]
	if !ok {
		return nil
	}
	out := make([]Preset, len(p.Presets))
	copy(out, p.Presets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		AvailablePoints:   s.AvailablePoints,
		TotalPointsEarned: s.TotalPointsEarned,
		Pilots:            make(map[string]*PilotTalents, len(s.Pilots)),
	}
	for id, p := range s.Pilots {
		cp := &PilotTalents{
			Unlocked:         make(map[string]int, len(p.Unlocked)),
			TotalPointsSpent: p.TotalPointsSpent,
		}
		if p.Presets != nil {
			cp.Presets = make([]Preset, len(p.Presets))
		}
		for k, v := range p.Unlocked {
			cp.Unlocked[k] = v
		}
		for i, pr := range p.Presets {
			talents := make(map[string]int, len(pr.Talents))
			for k, v := range pr.Talents {
				talents[k] = v
			}
			pr.Talents = talents
			cp.Presets[i] = pr
		}
		c.Pilots[id] = cp
	}
	return c
}

// Validate checks the point bookkeeping and, for pilots with a tree in
// trees, the rank bounds. Used when restoring persisted state.
func (s *State) Validate(trees map[string]Tree) error {
	if s.AvailablePoints < 0 {
		return fmt.Errorf("available points negative: %d", s.AvailablePoints)
	}
	spent := 0
	for pilotID, p := range s.Pilots {
		if p == nil {
			return fmt.Errorf("pilot %s: nil progress", pilotID)
		}
		if p.TotalPointsSpent < 0 {
			return fmt.Errorf("pilot %s: negative spend", pilotID)
		}
		spent += p.TotalPointsSpent
		tree, ok := trees[pilotID]
		if !ok {
			continue
		}
		for id, rank := range p.Unlocked {
			tal, ok := tree[id]
			if !ok {
				return fmt.Errorf("pilot %s: %w: %s", pilotID, ErrUnknownTalent, id)
			}
			if rank < 0 || rank > tal.MaxRank {
				return fmt.Errorf("pilot %s: talent %s rank %d out of range", pilotID, id, rank)
			}
		}
	}
	if s.AvailablePoints+spent != s.TotalPointsEarned {
		return fmt.Errorf("points out of balance: available %d + spent %d != earned %d",
			s.AvailablePoints, spent, s.TotalPointsEarned)
	}
	return nil
}
