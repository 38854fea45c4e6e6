// Package replay records story runs and handles replay import and export.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Outcomes.
const (
	OutcomeVictory = "VICTORY"
	OutcomeDefeat  = "DEFEAT"
)

// ErrInvalidReplay is wrapped by every validation failure.
var ErrInvalidReplay = errors.New("invalid replay")

// requiredFields must be present in an imported record.
var requiredFields = []string{
	"id", "timestamp", "pilotId", "pilotName", "module",
	"stage", "difficulty", "duration", "actions",
}

// Action is one recorded combat action.
type Action struct {
	Turn       int    `json:"turn"`
	Timestamp  int64  `json:"timestamp"` // Unix ms
	Actor      string `json:"actor"`
	ActionType string `json:"actionType"`
	Result     string `json:"result"`
}

// FinalStats are the run totals stored with a replay.
type FinalStats struct {
	DamageDealt   float64 `json:"damageDealt"`
	DamageTaken   float64 `json:"damageTaken"`
	EnemiesKilled int     `json:"enemiesKilled"`
	ItemsUsed     int     `json:"itemsUsed"`
	TurnsElapsed  int     `json:"turnsElapsed"`
	CriticalHits  int     `json:"criticalHits"`
}

// Record is a complete replay.
type Record struct {
	ID         string     `json:"id"`
	Timestamp  int64      `json:"timestamp"` // Unix ms at run start
	PilotID    string     `json:"pilotId"`
	PilotName  string     `json:"pilotName"`
	Module     string     `json:"module"`
	Stage      int        `json:"stage"`
	Difficulty string     `json:"difficulty"`
	Duration   int64      `json:"duration"` // ms
	Actions    []Action   `json:"actions"`
	Outcome    string     `json:"outcome"`
	FinalStats FinalStats `json:"finalStats"`
}

// Validate checks a raw replay payload and returns a descriptive error
// wrapping ErrInvalidReplay.
func Validate(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: not a JSON object: %v", ErrInvalidReplay, err)
	}
	for _, name := range requiredFields {
		v, ok := fields[name]
		if !ok || string(v) == "null" {
			return fmt.Errorf("%w: missing field %q", ErrInvalidReplay, name)
		}
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReplay, err)
	}
	if len(rec.Actions) == 0 {
		return fmt.Errorf("%w: actions is empty", ErrInvalidReplay)
	}
	for i, a := range rec.Actions {
		switch {
		case a.Turn == 0:
			return fmt.Errorf("%w: action %d has no turn", ErrInvalidReplay, i)
		case a.Timestamp == 0:
			return fmt.Errorf("%w: action %d has no timestamp", ErrInvalidReplay, i)
		case a.Actor == "":
			return fmt.Errorf("%w: action %d has no actor", ErrInvalidReplay, i)
		case a.Result == "":
			return fmt.Errorf("%w: action %d has no result", ErrInvalidReplay, i)
		}
	}
	if rec.Outcome != OutcomeVictory && rec.Outcome != OutcomeDefeat {
		return fmt.Errorf("%w: outcome %q is not %s or %s", ErrInvalidReplay, rec.Outcome, OutcomeVictory, OutcomeDefeat)
	}
	return nil
}

// Import validates a payload and decodes it. When the id already exists in
// existing, a new id is synthesized with an -import-<timestamp> suffix.
func Import(existing []Record, raw []byte, now time.Time) (Record, error) {
	if err := Validate(raw); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidReplay, err)
	}
	taken := func(id string) bool {
		return slices.ContainsFunc(existing, func(r Record) bool { return r.ID == id })
	}
	if taken(rec.ID) {
		rec.ID = fmt.Sprintf("%s-import-%d", rec.ID, now.UnixMilli())
	}
	return rec, nil
}

// Export serializes a record for sharing.
func Export(rec Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal replay: %w", err)
	}
	return data, nil
}

// Find returns the record with the given id.
func Find(list []Record, id string) (Record, bool) {
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Append adds a record, dropping the oldest entries beyond limit. A limit of
// zero keeps everything.
func Append(list []Record, rec Record, limit int) []Record {
	list = append(list, rec)
	if limit > 0 && len(list) > limit {
		list = slices.Clone(list[len(list)-limit:])
	}
	return list
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Meta describes the run being recorded.
type Meta struct {
	PilotID    string
	PilotName  string
	Module     string
	Stage      int
	Difficulty string
}

// Recorder builds a record during a run.
type Recorder struct {
	rec   Record
	start time.Time
}

// NewRecorder starts a recording.
func NewRecorder(meta Meta, start time.Time) *Recorder {
	return &Recorder{
		start: start,
		rec: Record{
			ID:         uuid.NewString(),
			Timestamp:  start.UnixMilli(),
			PilotID:    meta.PilotID,
			PilotName:  meta.PilotName,
			Module:     meta.Module,
			Stage:      meta.Stage,
			Difficulty: meta.Difficulty,
		},
	}
}

// Add records an action at a battle clock offset.
func (r *Recorder) Add(battleMs int64, actor, actionType, result string) {
	r.rec.Actions = append(r.rec.Actions, Action{
		Turn:       len(r.rec.Actions) + 1,
		Timestamp:  r.start.UnixMilli() + battleMs,
		Actor:      actor,
		ActionType: actionType,
		Result:     result,
	})
}

// SetStage updates the stage reached.
func (r *Recorder) SetStage(stage int) {
	r.rec.Stage = stage
}

// Len returns the number of recorded actions.
func (r *Recorder) Len() int {
	return len(r.rec.Actions)
}

// Finish seals the record.
func (r *Recorder) Finish(outcome string, durationMs int64, stats FinalStats) Record {
	rec := r.rec
	rec.Actions = slices.Clone(r.rec.Actions)
	rec.Outcome = outcome
	rec.Duration = durationMs
	rec.FinalStats = stats
	return rec
}
