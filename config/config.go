// Package config provides configuration loading and access for the game core.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all game configuration parameters.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Combat       CombatConfig       `yaml:"combat"`
	Story        StoryConfig        `yaml:"story"`
	Endless      EndlessConfig      `yaml:"endless"`
	Score        ScoreConfig        `yaml:"score"`
	Leaderboard  LeaderboardConfig  `yaml:"leaderboard"`
	Progression  ProgressionConfig  `yaml:"progression"`
	Save         SaveConfig         `yaml:"save"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Difficulties []DifficultyConfig `yaml:"difficulties"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// CombatConfig holds tick loop and resolver tuning.
type CombatConfig struct {
	TickMs                 int     `yaml:"tick_ms"`                  // Combat tick period
	PlayerChargeRate       float64 `yaml:"player_charge_rate"`       // Gauge per second at speed 1.0
	EnemyChargeRate        float64 `yaml:"enemy_charge_rate"`        // Gauge per second at speed 1.0
	AbilityChargeCost      float64 `yaml:"ability_charge_cost"`      // Gauge required and consumed by an ability
	ConsumableChargeCost   float64 `yaml:"consumable_charge_cost"`   // Gauge required and consumed by a consumable
	EnergyRegen            float64 `yaml:"energy_regen"`             // Energy per second
	HeatVent               float64 `yaml:"heat_vent"`                // Heat shed per second
	CritMultiplier         float64 `yaml:"crit_multiplier"`          // Damage multiplier on crit
	OverdriveMultiplier    float64 `yaml:"overdrive_multiplier"`     // Damage multiplier while overdrive is active
	BurrowStrikeMultiplier float64 `yaml:"burrow_strike_multiplier"` // Damage multiplier when emerging from burrow
	BurrowMs               int     `yaml:"burrow_ms"`                // Time underground before the player surfaces on their own
	DefendReduction        float64 `yaml:"defend_reduction"`         // Fraction of damage blocked by a defending enemy
	ChargedMultiplier      float64 `yaml:"charged_multiplier"`       // Next-attack multiplier after a charge intent
	HealFraction           float64 `yaml:"heal_fraction"`            // Fraction of max HP restored by a heal intent
	BossAbilityCooldownMs  int     `yaml:"boss_ability_cooldown_ms"` // Time between boss signature attacks
	BossAbilityMultiplier  float64 `yaml:"boss_ability_multiplier"`  // Damage multiplier of the boss signature attack
	BossPhaseThreshold     float64 `yaml:"boss_phase_threshold"`     // HP fraction that moves a boss to its next phase
	LogHistory             int     `yaml:"log_history"`              // Combat log lines kept for the view
}

// StoryConfig holds story-mode run parameters.
type StoryConfig struct {
	Stages         int `yaml:"stages"`
	Lives          int `yaml:"lives"`
	StartingScrap  int `yaml:"starting_scrap"`
	StagePoints    int `yaml:"stage_points"`     // Talent points awarded per stage clear
	BossStageEvery int `yaml:"boss_stage_every"` // Every Nth stage spawns a boss
}

// EndlessConfig holds endless-mode scaling parameters.
type EndlessConfig struct {
	UpgradeInterval      int                `yaml:"upgrade_interval"`
	UpgradeChoices       int                `yaml:"upgrade_choices"`
	BaseEnemyCount       int                `yaml:"base_enemy_count"`
	CountGrowth          float64            `yaml:"count_growth"` // Extra enemies per wave
	MaxEnemies           int                `yaml:"max_enemies"`
	HPGrowth             float64            `yaml:"hp_growth"`     // HP scale per wave
	DamageGrowth         float64            `yaml:"damage_growth"` // Damage scale per wave
	BossEvery            int                `yaml:"boss_every"`
	HazardChance         float64            `yaml:"hazard_chance"`
	HazardDamage         float64            `yaml:"hazard_damage"` // Fraction of max HP
	AffixChance          float64            `yaml:"affix_chance"`
	AffixGrowth          float64            `yaml:"affix_growth"`
	MaxAffixChance       float64            `yaml:"max_affix_chance"`
	WeakPointChance      float64            `yaml:"weak_point_chance"`
	WeakPointMultiplier  float64            `yaml:"weak_point_multiplier"` // Damage taken from the matching class
	MaxCooldownReduction float64            `yaml:"max_cooldown_reduction"`
	RarityWeights        map[string]float64 `yaml:"rarity_weights"`
}

// ScoreConfig holds endless score constants.
type ScoreConfig struct {
	PerWave            int `yaml:"per_wave"`
	PerKill            int `yaml:"per_kill"`
	TimeBonusPerMinute int `yaml:"time_bonus_per_minute"`
}

// LeaderboardConfig holds leaderboard settings.
type LeaderboardConfig struct {
	Size int `yaml:"size"`
}

// ProgressionConfig holds profile XP and talent point awards.
type ProgressionConfig struct {
	XPPerLevel     int `yaml:"xp_per_level"`
	XPPerKill      int `yaml:"xp_per_kill"`
	XPPerStage     int `yaml:"xp_per_stage"`
	PointsPerLevel int `yaml:"points_per_level"`
}

// SaveConfig holds persistence settings.
type SaveConfig struct {
	SchemaVersion   int    `yaml:"schema_version"`
	KeyPrefix       string `yaml:"key_prefix"`
	AutosaveSeconds int    `yaml:"autosave_seconds"` // Default for the persisted setting
	Backend         string `yaml:"backend"`          // file or sqlite
	Path            string `yaml:"path"`
	MaxReplays      int    `yaml:"max_replays"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds of combat per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DifficultyConfig holds the multiplier pair (plus scrap) for one difficulty.
type DifficultyConfig struct {
	ID         string  `yaml:"id"`
	HPMult     float64 `yaml:"hp_mult"`
	DamageMult float64 `yaml:"damage_mult"`
	ScrapMult  float64 `yaml:"scrap_mult"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickDuration    time.Duration  // Combat.TickMs as a duration
	TickSec         float64        // Combat.TickMs in seconds
	LogLevel        slog.Level     // Parsed Log.Level
	DifficultyIndex map[string]int // id -> index into Difficulties
}

// envOverrides maps SCRAPLINE_* environment variables onto config fields.
// Zero values mean "not set".
type envOverrides struct {
	LogLevel        string `env:"SCRAPLINE_LOG_LEVEL"`
	TickMs          int    `env:"SCRAPLINE_TICK_MS"`
	SaveBackend     string `env:"SCRAPLINE_SAVE_BACKEND"`
	SavePath        string `env:"SCRAPLINE_SAVE_PATH"`
	AutosaveSeconds int    `env:"SCRAPLINE_AUTOSAVE_SECONDS"`
	UpgradeInterval int    `env:"SCRAPLINE_UPGRADE_INTERVAL"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults with derived values. It ignores the
// process environment so tests get a stable baseline.
func Default() *Config {
	cfg, err := LoadWithEnv("", map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults,
// then applies SCRAPLINE_* environment overrides.
// If path is empty, only embedded defaults and the environment are used.
func Load(path string) (*Config, error) {
	return load(path, env.Options{})
}

// LoadWithEnv is like Load but reads overrides from the given map instead of
// the process environment.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	return load(path, env.Options{Environment: environ})
}

func load(path string, opts env.Options) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyOverrides(overrides)

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides(o envOverrides) {
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.TickMs > 0 {
		c.Combat.TickMs = o.TickMs
	}
	if o.SaveBackend != "" {
		c.Save.Backend = o.SaveBackend
	}
	if o.SavePath != "" {
		c.Save.Path = o.SavePath
	}
	if o.AutosaveSeconds > 0 {
		c.Save.AutosaveSeconds = o.AutosaveSeconds
	}
	if o.UpgradeInterval > 0 {
		c.Endless.UpgradeInterval = o.UpgradeInterval
	}
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	if c.Combat.TickMs <= 0 {
		return fmt.Errorf("combat.tick_ms must be positive, got %d", c.Combat.TickMs)
	}
	c.Derived.TickDuration = time.Duration(c.Combat.TickMs) * time.Millisecond
	c.Derived.TickSec = float64(c.Combat.TickMs) / 1000.0

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	c.Derived.LogLevel = level

	if c.Endless.UpgradeInterval <= 0 {
		c.Endless.UpgradeInterval = 5
	}
	if c.Leaderboard.Size <= 0 {
		c.Leaderboard.Size = 100
	}
	if c.Save.AutosaveSeconds <= 0 {
		c.Save.AutosaveSeconds = 30
	}

	// Synthesize a neutral difficulty if none specified
	if len(c.Difficulties) == 0 {
		c.Difficulties = []DifficultyConfig{{ID: "normal", HPMult: 1, DamageMult: 1, ScrapMult: 1}}
	}
	c.Derived.DifficultyIndex = make(map[string]int, len(c.Difficulties))
	for i, d := range c.Difficulties {
		c.Derived.DifficultyIndex[d.ID] = i
	}
	return nil
}

// Difficulty returns the named difficulty, falling back to the first entry.
func (c *Config) Difficulty(id string) DifficultyConfig {
	if i, ok := c.Derived.DifficultyIndex[id]; ok {
		return c.Difficulties[i]
	}
	return c.Difficulties[0]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
