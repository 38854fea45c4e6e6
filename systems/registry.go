package systems

// Tick phase IDs, in the order the battle runs them.
const (
	PhasePlayerAction = "player_action"
	PhaseCleanup      = "cleanup"
	PhaseStatuses     = "statuses"
	PhaseRegen        = "regen"
	PhaseEnemies      = "enemies"
	PhaseWaveCheck    = "wave_check"
	PhaseTelemetry    = "telemetry" // Session-side, after the battle tick
)

// PhaseInfo describes a combat tick phase for logs and perf output.
type PhaseInfo struct {
	ID          string // Internal identifier (used for perf tracking)
	Name        string // Display name
	Description string // What this phase does
	Category    string // Grouping (e.g., "player", "enemy")
}

// PhaseRegistry holds metadata about all tick phases.
// This centralizes phase naming so telemetry and logs stay in sync.
type PhaseRegistry struct {
	phases []PhaseInfo
	byID   map[string]PhaseInfo
}

// NewPhaseRegistry creates a registry with the standard tick phases.
func NewPhaseRegistry() *PhaseRegistry {
	reg := &PhaseRegistry{
		byID: make(map[string]PhaseInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds the tick phases in execution order.
// Update this when the tick sequence changes.
func (r *PhaseRegistry) registerDefaults() {
	r.Register(PhaseInfo{ID: PhasePlayerAction, Name: "Player Action", Description: "Resolves the queued ability or consumable", Category: "player"})
	r.Register(PhaseInfo{ID: PhaseCleanup, Name: "Cleanup", Description: "Removes destroyed enemies", Category: "core"})
	r.Register(PhaseInfo{ID: PhaseStatuses, Name: "Statuses", Description: "Ticks burns, shields, stuns and overdrive", Category: "core"})
	r.Register(PhaseInfo{ID: PhaseRegen, Name: "Regen", Description: "Player charge, energy regen, heat venting, cooldowns", Category: "player"})
	r.Register(PhaseInfo{ID: PhaseEnemies, Name: "Enemies", Description: "Enemy charge and actions in slot order", Category: "enemy"})
	r.Register(PhaseInfo{ID: PhaseWaveCheck, Name: "Wave Check", Description: "Detects a cleared wave", Category: "core"})
	r.Register(PhaseInfo{ID: PhaseTelemetry, Name: "Telemetry", Description: "Feeds stats, trackers and output", Category: "session"})
}

// Register adds a phase to the registry.
func (r *PhaseRegistry) Register(info PhaseInfo) {
	r.phases = append(r.phases, info)
	r.byID[info.ID] = info
}

// Get returns phase info by ID.
func (r *PhaseRegistry) Get(id string) (PhaseInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func (r *PhaseRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// All returns all registered phases.
func (r *PhaseRegistry) All() []PhaseInfo {
	return r.phases
}

// IDs returns all phase IDs in execution order.
func (r *PhaseRegistry) IDs() []string {
	ids := make([]string, len(r.phases))
	for i, info := range r.phases {
		ids[i] = info.ID
	}
	return ids
}
