// Package consensus reduces independent scalar estimates of one quantity
// into a recommended value with a confidence classification.
package consensus

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/weight"
)

// NoEstimatesRationale is the rationale of an empty consensus.
const NoEstimatesRationale = "no estimates available"

// Bounds is the valid domain of a value kind. A nil side is unbounded.
type Bounds struct {
	Min *float64 `yaml:"min" mapstructure:"min"`
	Max *float64 `yaml:"max" mapstructure:"max"`
}

// Contains reports whether v is finite and inside b.
func (b Bounds) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

func (b Bounds) String() string {
	lo, hi := "-inf", "+inf"
	if b.Min != nil {
		lo = formatValue(*b.Min)
	}
	if b.Max != nil {
		hi = formatValue(*b.Max)
	}
	return "[" + lo + ", " + hi + "]"
}

// Thresholds gate the confidence classification. The first matching rule
// wins: High, then Medium, else Low.
type Thresholds struct {
	HighMinTier1   int     `yaml:"high_min_tier1" mapstructure:"high_min_tier1"`
	HighMaxCV      float64 `yaml:"high_max_cv" mapstructure:"high_max_cv"`
	MediumMinTier1 int     `yaml:"medium_min_tier1" mapstructure:"medium_min_tier1"`
	MediumMaxCV    float64 `yaml:"medium_max_cv" mapstructure:"medium_max_cv"`
}

// Config configures Calculate.
type Config struct {
	Weight     weight.Config              `yaml:"weight" mapstructure:"weight"`
	Thresholds Thresholds                 `yaml:"thresholds" mapstructure:"thresholds"`
	Domains    map[model.ValueKind]Bounds `yaml:"domains" mapstructure:"domains"`

	// WeightScale converts a weight into a repeat count: round(w*scale).
	WeightScale float64 `yaml:"weight_scale" mapstructure:"weight_scale"`
}

func ptr(v float64) *float64 { return &v }

// DefaultDomains returns the domain bounds per kind: counts are
// non-negative, rates are percentages in [0, 100].
func DefaultDomains() map[model.ValueKind]Bounds {
	return map[model.ValueKind]Bounds{
		model.KindPrevalence:    {Min: ptr(0)},
		model.KindIncidence:     {Min: ptr(0)},
		model.KindFailureRate:   {Min: ptr(0), Max: ptr(100)},
		model.KindTreatmentRate: {Min: ptr(0), Max: ptr(100)},
	}
}

// DefaultConfig returns the standard consensus configuration.
func DefaultConfig() Config {
	return Config{
		Weight: weight.DefaultConfig(),
		Thresholds: Thresholds{
			HighMinTier1:   2,
			HighMaxCV:      0.3,
			MediumMinTier1: 1,
			MediumMaxCV:    0.5,
		},
		Domains:     DefaultDomains(),
		WeightScale: 10,
	}
}

// DomainFor returns the bounds for kind; unknown kinds only require a
// finite value.
func (c Config) DomainFor(kind model.ValueKind) Bounds {
	return c.Domains[kind]
}

// Calculate filters estimates to kind, drops out-of-domain values (each
// drop is reported as an error issue, never clamped) and reduces the rest.
// An empty input yields a Low-confidence result; Calculate never fails.
func Calculate(estimates []model.SourceEstimate, kind model.ValueKind, cfg Config) (model.ConsensusResult, []model.ValidationIssue) {
	var (
		issues []model.ValidationIssue
		kept   []model.SourceEstimate
		domain = cfg.DomainFor(kind)
	)

	for _, e := range estimates {
		if e.Kind != kind {
			continue
		}
		if !domain.Contains(e.Value) {
			issues = append(issues, model.ValidationIssue{
				Severity: model.SeverityError,
				Rule:     "domain_bounds",
				Subject:  e.SourceID,
				Field:    string(kind),
				Message:  fmt.Sprintf("%s value %s outside %s", kind, formatValue(e.Value), domain),
				Action:   "excluded from consensus",
			})
			zap.L().Warn("consensus: out-of-domain estimate excluded",
				zap.String("kind", string(kind)),
				zap.String("source_id", e.SourceID),
				zap.Float64("value", e.Value),
			)
			continue
		}
		kept = append(kept, e)
	}

	result := model.ConsensusResult{Kind: kind}
	if len(kept) == 0 {
		result.Confidence = model.ConfidenceLow
		result.Rationale = NoEstimatesRationale
		return result, issues
	}

	values := make([]float64, len(kept))
	weights := make([]float64, len(kept))
	sourceIDs := make([]string, 0, len(kept))
	for i, e := range kept {
		values[i] = e.Value
		weights[i] = weight.Weight(e, cfg.Weight)
		if e.SourceID != "" {
			sourceIDs = append(sourceIDs, e.SourceID)
		}
		if e.Tier == model.Tier1 {
			result.Tier1Count++
		}
	}

	result.EstimateCount = len(kept)
	result.Values = values
	if len(sourceIDs) > 0 {
		result.SourceIDs = sourceIDs
	}
	result.SimpleMedian = Median(values)
	result.RecommendedValue = WeightedMedian(values, weights, cfg.WeightScale)
	result.RangeLow, result.RangeHigh = minMax(values)
	result.CoefficientOfVariation = CoefficientOfVariation(values)
	result.Confidence = Classify(result.Tier1Count, result.CoefficientOfVariation, cfg.Thresholds)
	result.Rationale = rationale(result)

	zap.L().Debug("consensus: computed",
		zap.String("kind", string(kind)),
		zap.Int("estimates", result.EstimateCount),
		zap.Int("tier1", result.Tier1Count),
		zap.Float64("recommended", result.RecommendedValue),
		zap.Float64("cv", result.CoefficientOfVariation),
		zap.String("confidence", string(result.Confidence)),
	)

	return result, issues
}

// Classify applies the confidence thresholds in order.
func Classify(tier1Count int, cv float64, th Thresholds) model.Confidence {
	switch {
	case tier1Count >= th.HighMinTier1 && th.HighMinTier1 > 0 && cv < th.HighMaxCV:
		return model.ConfidenceHigh
	case tier1Count >= th.MediumMinTier1 && th.MediumMinTier1 > 0 && cv < th.MediumMaxCV:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// CoefficientOfVariation returns sample stdev / mean, or 0 for fewer than
// two values or a zero mean.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	if mean == 0 || math.IsNaN(std) {
		return 0
	}
	return std / mean
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func rationale(r model.ConsensusResult) string {
	return fmt.Sprintf("weighted median of %d estimate(s), %d tier-1; range %s-%s; CV %.2f; confidence %s",
		r.EstimateCount, r.Tier1Count,
		formatValue(r.RangeLow), formatValue(r.RangeHigh),
		r.CoefficientOfVariation, r.Confidence,
	)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%g", v)
}
