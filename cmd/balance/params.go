package main

import (
	"github.com/pthm-cable/scrapline/config"
)

// ParamSpec defines a single tunable endless-scaling parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of endless curve parameters,
// defaulting to the values in base.
func NewParamVector(base config.EndlessConfig) *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "hp_growth", Path: "endless.hp_growth", Min: 0.02, Max: 0.5, Default: base.HPGrowth},
			{Name: "damage_growth", Path: "endless.damage_growth", Min: 0.01, Max: 0.3, Default: base.DamageGrowth},
			{Name: "count_growth", Path: "endless.count_growth", Min: 0.05, Max: 1.0, Default: base.CountGrowth},
			{Name: "affix_growth", Path: "endless.affix_growth", Min: 0, Max: 0.1, Default: base.AffixGrowth},
			{Name: "hazard_chance", Path: "endless.hazard_chance", Min: 0, Max: 0.5, Default: base.HazardChance},
			{Name: "hazard_damage", Path: "endless.hazard_damage", Min: 0.02, Max: 0.3, Default: base.HazardDamage},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.Endless.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Endless.HPGrowth = c[0]
	cfg.Endless.DamageGrowth = c[1]
	cfg.Endless.CountGrowth = c[2]
	cfg.Endless.AffixGrowth = c[3]
	cfg.Endless.HazardChance = c[4]
	cfg.Endless.HazardDamage = c[5]
}

// ExtractFromConfig extracts current parameter values from a Config.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Endless.HPGrowth,
		cfg.Endless.DamageGrowth,
		cfg.Endless.CountGrowth,
		cfg.Endless.AffixGrowth,
		cfg.Endless.HazardChance,
		cfg.Endless.HazardDamage,
	}
}
