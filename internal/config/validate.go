package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/model"
)

// Validate checks the configuration for the given command mode and
// reports every problem at once. Modes: "engine" (pipeline knobs only),
// "store" (audit log settings), "run" (both).
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "engine":
		errs = c.engineErrors()
	case "store":
		errs = c.storeErrors()
	case "run":
		errs = append(c.engineErrors(), c.storeErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.Retry.MaxAttempts < 0 || c.Store.Retry.InitialBackoff < 0 || c.Store.Retry.MaxBackoff < 0 {
		errs = append(errs, "store.retry values must be >= 0")
	}
	return errs
}

func (c *Config) engineErrors() []string {
	var errs []string

	if c.Engine.Concurrency < 1 || c.Engine.Concurrency > 64 {
		errs = append(errs, "engine.concurrency must be between 1 and 64")
	}
	if c.Engine.TargetsPerSecond < 0 {
		errs = append(errs, "engine.targets_per_second must be >= 0")
	}

	for tier, w := range c.Weight.TierWeights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weight.tier_weights.%s must be >= 0", tier))
		}
	}
	if c.Weight.RecencyMultiplier <= 0 {
		errs = append(errs, "weight.recency_multiplier must be > 0")
	}
	for i, th := range c.Weight.SampleSizeThresholds {
		if th.Above < 0 || th.Multiplier <= 0 {
			errs = append(errs, fmt.Sprintf("weight.sample_size_thresholds[%d] needs above >= 0 and multiplier > 0", i))
		}
	}

	th := c.Consensus.Thresholds
	if th.HighMinTier1 < th.MediumMinTier1 {
		errs = append(errs, "consensus.thresholds.high_min_tier1 must be >= medium_min_tier1")
	}
	if th.HighMaxCV > th.MediumMaxCV {
		errs = append(errs, "consensus.thresholds.high_max_cv must be <= medium_max_cv")
	}
	if th.HighMaxCV < 0 || th.MediumMaxCV < 0 {
		errs = append(errs, "consensus.thresholds cv limits must be >= 0")
	}
	if c.Consensus.WeightScale <= 0 {
		errs = append(errs, "consensus.weight_scale must be > 0")
	}
	errs = append(errs, boundsErrors("consensus.domains", c.Consensus.Domains)...)
	errs = append(errs, boundsErrors("validate.domains", c.Validation.Domains)...)

	errs = append(errs, rankErrors("merge.phase_ranks", c.Merge.PhaseRanks)...)
	errs = append(errs, rankErrors("validate.phase_ranks", c.Validation.PhaseRanks)...)

	if c.Verify.FallbackPhase != "" {
		if _, ok := c.Merge.PhaseRanks[c.Verify.FallbackPhase]; !ok && len(c.Merge.PhaseRanks) > 0 {
			errs = append(errs, fmt.Sprintf("verify.fallback_phase %q is not a ranked phase", c.Verify.FallbackPhase))
		}
	}

	if c.Validation.SpreadRatio < 0 || c.Validation.RoundNumber < 0 {
		errs = append(errs, "validate.spread_ratio and validate.round_number must be >= 0")
	}

	sort.Strings(errs)
	return errs
}

func boundsErrors(prefix string, domains map[model.ValueKind]consensus.Bounds) []string {
	var errs []string
	for kind, b := range domains {
		if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
			errs = append(errs, fmt.Sprintf("%s.%s min is greater than max", prefix, kind))
		}
	}
	return errs
}

func rankErrors(prefix string, ranks model.PhaseRanks) []string {
	if len(ranks) == 0 {
		return nil
	}
	var errs []string
	seen := make(map[int]model.Phase, len(ranks))
	for p, r := range ranks {
		if r < 1 {
			errs = append(errs, fmt.Sprintf("%s.%s must be >= 1", prefix, p))
		}
		if other, dup := seen[r]; dup {
			a, b := other, p
			if b < a {
				a, b = b, a
			}
			errs = append(errs, fmt.Sprintf("%s: %s and %s share rank %d", prefix, a, b, r))
		}
		seen[r] = p
	}
	if _, ok := ranks[model.PhaseUnknown]; !ok {
		errs = append(errs, fmt.Sprintf("%s must rank %s", prefix, model.PhaseUnknown))
	}
	return errs
}
