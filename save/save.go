package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/scrapline/achievements"
	"github.com/pthm-cable/scrapline/config"
	"github.com/pthm-cable/scrapline/content"
	"github.com/pthm-cable/scrapline/endless"
	"github.com/pthm-cable/scrapline/replay"
	"github.com/pthm-cable/scrapline/talent"
	"github.com/pthm-cable/scrapline/telemetry"
)

// LoadResult describes what Load found.
type LoadResult struct {
	Doc      *Document
	Key      string   // Key the data came from, empty when nothing was found
	Found    bool     // A blob existed under the current or previous key
	Migrated bool     // The blob came from the previous schema version
	Reverted []string // Slices that were malformed and fell back to defaults
}

// Options tune a Manager.
type Options struct {
	Trees map[string]talent.Tree // When set, the talents slice is validated against them
	Now   func() time.Time
}

// Manager loads and saves documents through a Backend.
type Manager struct {
	backend Backend
	cfg     *config.Config
	trees   map[string]talent.Tree
	now     func() time.Time
}

// NewManager creates a manager for the configured schema version.
func NewManager(b Backend, cfg *config.Config, opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{backend: b, cfg: cfg, trees: opts.Trees, now: now}
}

// CurrentKey is the key documents are saved under.
func (m *Manager) CurrentKey() string {
	return Key(m.cfg.Save.KeyPrefix, m.cfg.Save.SchemaVersion)
}

// PreviousKey is the key of the preceding schema version, empty for v1.
func (m *Manager) PreviousKey() string {
	if m.cfg.Save.SchemaVersion <= 1 {
		return ""
	}
	return Key(m.cfg.Save.KeyPrefix, m.cfg.Save.SchemaVersion-1)
}

// Defaults returns a fresh default document.
func (m *Manager) Defaults() *Document {
	return NewDocument(m.cfg, m.now())
}

// Load reads the document. It never fails: a missing save, an unreadable
// blob or a malformed slice all degrade to defaults and are logged.
func (m *Manager) Load(ctx context.Context) LoadResult {
	res := LoadResult{Doc: m.Defaults()}

	key := m.CurrentKey()
	raw, err := m.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) && m.PreviousKey() != "" {
		key = m.PreviousKey()
		raw, err = m.backend.Get(ctx, key)
		res.Migrated = err == nil
	}
	if errors.Is(err, ErrNotFound) {
		slog.Info("save_not_found", "key", m.CurrentKey())
		return res
	}
	if err != nil {
		slog.Warn("save_read_failed", "key", key, "error", err)
		return res
	}
	res.Found = true
	res.Key = key

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		slog.Warn("save_unreadable", "key", key, "error", err)
		for _, c := range m.codecs() {
			res.Reverted = append(res.Reverted, c.key)
		}
		return res
	}
	for _, c := range m.codecs() {
		v, ok := fields[c.key]
		if !ok {
			continue
		}
		if err := c.decode(res.Doc, v); err != nil {
			slog.Warn("save_slice_reverted", "slice", c.key, "key", key, "error", err)
			res.Reverted = append(res.Reverted, c.key)
		}
	}
	if res.Migrated {
		slog.Info("save_migrated", "from", key, "to", m.CurrentKey())
	}
	return res
}

// Save writes the whole document under the current key.
func (m *Manager) Save(ctx context.Context, doc *Document) error {
	doc.SchemaVersion = m.cfg.Save.SchemaVersion
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal save: %w", err)
	}
	if err := m.backend.Put(ctx, m.CurrentKey(), data); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	slog.Debug("save_written", "key", m.CurrentKey(), "bytes", len(data))
	return nil
}

// Copy copies every key from src to dst and returns how many were copied.
func Copy(ctx context.Context, dst, src Backend) (int, error) {
	keys, err := src.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		data, err := src.Get(ctx, k)
		if err != nil {
			return i, fmt.Errorf("copy %s: %w", k, err)
		}
		if err := dst.Put(ctx, k, data); err != nil {
			return i, fmt.Errorf("copy %s: %w", k, err)
		}
	}
	return len(keys), nil
}

// sliceCodec decodes one top-level key into the document.
type sliceCodec struct {
	key    string
	decode func(doc *Document, raw json.RawMessage) error
}

// slice builds a codec that decodes into a fresh value, normalizes it, and
// only then replaces the document field. A failure leaves the default.
func slice[T any](key string, field func(*Document) *T, normalize func(T) (T, error)) sliceCodec {
	return sliceCodec{
		key: key,
		decode: func(doc *Document, raw json.RawMessage) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			if normalize != nil {
				var err error
				if v, err = normalize(v); err != nil {
					return err
				}
			}
			*field(doc) = v
			return nil
		},
	}
}

var errNull = errors.New("slice is null")

func (m *Manager) codecs() []sliceCodec {
	return []sliceCodec{
		slice("profile", func(d *Document) *Profile { return &d.Profile }, func(p Profile) (Profile, error) {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			p.Level = max(p.Level, 1)
			return p, nil
		}),
		slice("settings", func(d *Document) *Settings { return &d.Settings }, func(s Settings) (Settings, error) {
			if s.AutosaveIntervalSeconds <= 0 {
				s.AutosaveIntervalSeconds = m.cfg.Save.AutosaveSeconds
			}
			if s.CombatSpeed <= 0 {
				s.CombatSpeed = 1
			}
			return s, nil
		}),
		slice("runState", func(d *Document) *StoryRun { return &d.RunState }, func(r StoryRun) (StoryRun, error) {
			if r.Items == nil {
				r.Items = make(map[string]int)
			}
			return r, nil
		}),
		slice("stats", func(d *Document) **telemetry.GameStats { return &d.Stats }, func(s *telemetry.GameStats) (*telemetry.GameStats, error) {
			if s == nil {
				return nil, errNull
			}
			for id, p := range s.Pilots {
				if p == nil {
					return nil, fmt.Errorf("pilot %s: null breakdown", id)
				}
			}
			for n, st := range s.Stages {
				if st == nil {
					return nil, fmt.Errorf("stage %d: null breakdown", n)
				}
			}
			return s.Clone(), nil
		}),
		slice("achievements", func(d *Document) *achievements.Unlocked { return &d.Achievements }, func(u achievements.Unlocked) (achievements.Unlocked, error) {
			if u == nil {
				u = achievements.Unlocked{}
			}
			return u, nil
		}),
		slice("loadouts", func(d *Document) *Loadouts { return &d.Loadouts }, func(l Loadouts) (Loadouts, error) {
			if l.Modules == nil {
				l.Modules = make(map[string]string)
			}
			return l, nil
		}),
		slice("difficulty", func(d *Document) *string { return &d.Difficulty }, func(id string) (string, error) {
			if _, ok := m.cfg.Derived.DifficultyIndex[id]; !ok {
				return "", fmt.Errorf("unknown difficulty %q", id)
			}
			return id, nil
		}),
		slice("lives", func(d *Document) *int { return &d.Lives }, func(n int) (int, error) {
			if n < 0 {
				return 0, fmt.Errorf("negative lives %d", n)
			}
			return n, nil
		}),
		slice("craftedItems", func(d *Document) *map[string]int { return &d.CraftedItems }, func(items map[string]int) (map[string]int, error) {
			if items == nil {
				items = make(map[string]int)
			}
			return items, nil
		}),
		slice("endlessState", func(d *Document) **endless.RunState { return &d.EndlessState }, func(rs *endless.RunState) (*endless.RunState, error) {
			if rs == nil {
				return nil, errNull
			}
			return rs, nil
		}),
		slice("leaderboard", func(d *Document) **telemetry.Leaderboard { return &d.Leaderboard }, func(lb *telemetry.Leaderboard) (*telemetry.Leaderboard, error) {
			if lb == nil {
				return nil, errNull
			}
			if lb.MaxSize() == m.cfg.Leaderboard.Size {
				return lb, nil
			}
			sized := telemetry.NewLeaderboard(m.cfg.Leaderboard.Size)
			for _, e := range lb.Entries() {
				sized.Insert(e)
			}
			return sized, nil
		}),
		slice("codex", func(d *Document) *Codex { return &d.Codex }, func(c Codex) (Codex, error) {
			if c == nil {
				c = Codex{}
			}
			for id, e := range c {
				if e == nil {
					return nil, fmt.Errorf("codex %s: null entry", id)
				}
			}
			return c, nil
		}),
		slice("replays", func(d *Document) *[]replay.Record { return &d.Replays }, func(list []replay.Record) ([]replay.Record, error) {
			if list == nil {
				list = []replay.Record{}
			}
			if limit := m.cfg.Save.MaxReplays; limit > 0 && len(list) > limit {
				list = list[len(list)-limit:]
			}
			return list, nil
		}),
		slice("talents", func(d *Document) **talent.State { return &d.Talents }, func(s *talent.State) (*talent.State, error) {
			if s == nil {
				return nil, errNull
			}
			if s.Pilots == nil {
				s.Pilots = make(map[string]*talent.PilotTalents)
			}
			if err := s.Validate(m.trees); err != nil {
				return nil, err
			}
			return s, nil
		}),
		slice[*content.Modifier]("currentDailyModifier", func(d *Document) **content.Modifier { return &d.CurrentDailyModifier }, nil),
		slice[string]("lastModifierUpdateDate", func(d *Document) *string { return &d.LastModifierUpdateDate }, nil),
	}
}
