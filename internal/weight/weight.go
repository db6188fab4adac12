// Package weight scores a source estimate by quality tier, recency and
// sample size.
package weight

import (
	"sort"

	"github.com/eletricells/vantdge/internal/model"
)

// SampleThreshold multiplies the weight of estimates whose sample size is
// strictly greater than Above.
type SampleThreshold struct {
	Above      int64   `yaml:"above" mapstructure:"above"`
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// Config holds the scoring factors.
type Config struct {
	TierWeights          map[model.QualityTier]float64 `yaml:"tier_weights" mapstructure:"tier_weights"`
	RecencyCutoffYear    int                           `yaml:"recency_cutoff_year" mapstructure:"recency_cutoff_year"`
	RecencyMultiplier    float64                       `yaml:"recency_multiplier" mapstructure:"recency_multiplier"`
	SampleSizeThresholds []SampleThreshold             `yaml:"sample_size_thresholds" mapstructure:"sample_size_thresholds"`
}

// DefaultConfig returns the standard weighting: Tier1 3.0, Tier2 2.0,
// Tier3 and Unknown 1.0; ×1.5 for data from 2020 on; ×1.3 above ten
// million subjects, ×1.1 above one million.
func DefaultConfig() Config {
	return Config{
		TierWeights: map[model.QualityTier]float64{
			model.Tier1:       3.0,
			model.Tier2:       2.0,
			model.Tier3:       1.0,
			model.TierUnknown: 1.0,
		},
		RecencyCutoffYear: 2020,
		RecencyMultiplier: 1.5,
		SampleSizeThresholds: []SampleThreshold{
			{Above: 10_000_000, Multiplier: 1.3},
			{Above: 1_000_000, Multiplier: 1.1},
		},
	}
}

// Weight returns the product of the tier, recency and sample-size factors
// that apply to e. Missing metadata contributes a neutral 1.0.
func Weight(e model.SourceEstimate, cfg Config) float64 {
	return TierFactor(e.Tier, cfg) * RecencyFactor(e.Year, cfg) * SampleFactor(e.SampleSize, cfg)
}

// TierFactor returns the configured weight for a tier. Tiers absent from
// the table fall back to the Unknown weight, then to 1.0.
func TierFactor(t model.QualityTier, cfg Config) float64 {
	if w, ok := cfg.TierWeights[t]; ok {
		return w
	}
	if w, ok := cfg.TierWeights[model.TierUnknown]; ok {
		return w
	}
	return 1.0
}

// RecencyFactor boosts estimates published in or after the cutoff year.
func RecencyFactor(year *int, cfg Config) float64 {
	if year == nil || cfg.RecencyCutoffYear <= 0 || cfg.RecencyMultiplier <= 0 {
		return 1.0
	}
	if *year >= cfg.RecencyCutoffYear {
		return cfg.RecencyMultiplier
	}
	return 1.0
}

// SampleFactor applies the multiplier of the highest threshold the sample
// size exceeds. Thresholds are consulted largest first, so the table may be
// configured in any order.
func SampleFactor(n *int64, cfg Config) float64 {
	if n == nil || len(cfg.SampleSizeThresholds) == 0 {
		return 1.0
	}
	thresholds := make([]SampleThreshold, len(cfg.SampleSizeThresholds))
	copy(thresholds, cfg.SampleSizeThresholds)
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i].Above > thresholds[j].Above })

	for _, th := range thresholds {
		if *n > th.Above && th.Multiplier > 0 {
			return th.Multiplier
		}
	}
	return 1.0
}
