package validate

import (
	"fmt"
	"math"

	"github.com/eletricells/vantdge/internal/model"
)

// Rule names.
const (
	RuleDomain            = "domain_bounds"
	RuleWideSpread        = "wide_spread"
	RuleRoundNumbers      = "round_numbers"
	RuleFailureRateRange  = "failure_rate_range"
	RuleLowTreatmentRate  = "low_treatment_rate"
	RuleLowConfidence     = "low_confidence"
	RuleIdentityMissing   = "identity_missing"
	RuleTerminalNoDetail  = "terminal_without_detail"
	RuleActiveWithDetail  = "active_with_detail"
	RuleUnknownPhase      = "unknown_phase"
	RuleHighestPhaseOrder = "highest_phase_order"
)

// DefaultConsensusRules returns the consensus rule set.
func DefaultConsensusRules() []ConsensusRule {
	return []ConsensusRule{
		{Name: RuleDomain, Check: checkDomain},
		{Name: RuleWideSpread, Check: checkSpread},
		{Name: RuleRoundNumbers, Check: checkRoundNumbers},
		{Name: RuleFailureRateRange, Check: checkFailureRateRange},
		{Name: RuleLowTreatmentRate, Check: checkTreatmentRate},
		{Name: RuleLowConfidence, Check: checkLowConfidence},
	}
}

// DefaultEntityRules returns the entity rule set.
func DefaultEntityRules() []EntityRule {
	return []EntityRule{
		{Name: RuleIdentityMissing, Check: checkIdentity},
		{Name: RuleTerminalNoDetail, Check: checkTerminalDetail},
		{Name: RuleActiveWithDetail, Check: checkActiveDetail},
		{Name: RuleUnknownPhase, Check: checkPhase},
		{Name: RuleHighestPhaseOrder, Check: checkHighestPhase},
	}
}

// rawValues returns the values behind a result, falling back to its range
// when the raw values were not carried.
func rawValues(r model.ConsensusResult) []float64 {
	if len(r.Values) > 0 {
		return r.Values
	}
	if r.EstimateCount == 0 {
		return nil
	}
	return []float64{r.RangeLow, r.RangeHigh}
}

func checkDomain(cfg Config, r model.ConsensusResult) []model.ValidationIssue {
	if r.EstimateCount == 0 {
		return nil
	}
	bounds := cfg.Domains[r.Kind]
	fields := []struct {
		name string
		v    float64
	}{
		{"recommended_value", r.RecommendedValue},
		{"range_low", r.RangeLow},
		{"range_high", r.RangeHigh},
	}
	var out []model.ValidationIssue
	for _, f := range fields {
		if bounds.Contains(f.v) {
			continue
		}
		out = append(out, model.ValidationIssue{
			Severity: model.SeverityError,
			Rule:     RuleDomain,
			Subject:  string(r.Kind),
			Field:    f.name,
			Message:  fmt.Sprintf("%s %g outside %s", f.name, f.v, bounds),
			Action:   "treat value as invalid",
		})
	}
	for i, v := range r.Values {
		if bounds.Contains(v) {
			continue
		}
		out = append(out, model.ValidationIssue{
			Severity: model.SeverityError,
			Rule:     RuleDomain,
			Subject:  string(r.Kind),
			Field:    fmt.Sprintf("values[%d]", i),
			Message:  fmt.Sprintf("raw value %g outside %s", v, bounds),
			Action:   "treat value as invalid",
		})
	}
	return out
}

func checkSpread(cfg Config, r model.ConsensusResult) []model.ValidationIssue {
	values := rawValues(r)
	if len(values) < 2 || cfg.SpreadRatio <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo <= 0 || hi/lo <= cfg.SpreadRatio {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityWarning,
		Rule:     RuleWideSpread,
		Subject:  string(r.Kind),
		Field:    "range",
		Message:  fmt.Sprintf("wide spread: max/min ratio %.1f exceeds %g", hi/lo, cfg.SpreadRatio),
		Action:   "review source definitions and populations",
	}}
}

func checkRoundNumbers(cfg Config, r model.ConsensusResult) []model.ValidationIssue {
	if len(r.Values) < 2 || cfg.RoundNumber <= 0 {
		return nil
	}
	for _, v := range r.Values {
		if v == 0 || math.Mod(v, cfg.RoundNumber) != 0 {
			return nil
		}
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityInfo,
		Rule:     RuleRoundNumbers,
		Subject:  string(r.Kind),
		Field:    "values",
		Message:  fmt.Sprintf("possibly rough estimates: all %d values are multiples of %g", len(r.Values), cfg.RoundNumber),
		Action:   "prefer sources reporting exact counts",
	}}
}

func checkFailureRateRange(cfg Config, r model.ConsensusResult) []model.ValidationIssue {
	if r.Kind != model.KindFailureRate || r.EstimateCount < 2 {
		return nil
	}
	spread := r.RangeHigh - r.RangeLow
	if spread <= cfg.FailureRateMaxRange {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityWarning,
		Rule:     RuleFailureRateRange,
		Subject:  string(r.Kind),
		Field:    "range",
		Message:  fmt.Sprintf("failure rate range %.1f pp exceeds %g pp", spread, cfg.FailureRateMaxRange),
		Action:   "check that sources share a failure definition",
	}}
}

func checkTreatmentRate(cfg Config, r model.ConsensusResult) []model.ValidationIssue {
	if r.Kind != model.KindTreatmentRate || r.EstimateCount == 0 {
		return nil
	}
	if r.RecommendedValue >= cfg.TreatmentRateFloor {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityInfo,
		Rule:     RuleLowTreatmentRate,
		Subject:  string(r.Kind),
		Field:    "recommended_value",
		Message:  fmt.Sprintf("treatment rate %g%% is below %g%%", r.RecommendedValue, cfg.TreatmentRateFloor),
		Action:   "confirm the rate refers to the treated population",
	}}
}

func checkLowConfidence(_ Config, r model.ConsensusResult) []model.ValidationIssue {
	if r.EstimateCount == 0 || r.Confidence != model.ConfidenceLow {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityInfo,
		Rule:     RuleLowConfidence,
		Subject:  string(r.Kind),
		Field:    "confidence",
		Message:  fmt.Sprintf("low confidence from %d estimate(s), %d tier-1, CV %.2f", r.EstimateCount, r.Tier1Count, r.CoefficientOfVariation),
		Action:   "seek additional tier-1 sources",
	}}
}

func checkIdentity(_ Config, e model.MergedEntity) []model.ValidationIssue {
	if e.IdentityKey != "" {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityError,
		Rule:     RuleIdentityMissing,
		Subject:  e.Name,
		Field:    "identity_key",
		Message:  "merged entity has no identity key",
		Action:   "exclude from downstream matching",
	}}
}

func checkTerminalDetail(_ Config, e model.MergedEntity) []model.ValidationIssue {
	if !e.Status.Terminal() || e.StatusDetail != nil {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityWarning,
		Rule:     RuleTerminalNoDetail,
		Subject:  e.IdentityKey,
		Field:    "status_detail",
		Message:  fmt.Sprintf("status %s has no date or reason", e.Status),
		Action:   "find a source for the status change",
	}}
}

func checkActiveDetail(_ Config, e model.MergedEntity) []model.ValidationIssue {
	if e.Status.Terminal() || e.StatusDetail == nil {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityWarning,
		Rule:     RuleActiveWithDetail,
		Subject:  e.IdentityKey,
		Field:    "status_detail",
		Message:  "active entity carries a status detail",
		Action:   "ignore detail",
	}}
}

func checkPhase(cfg Config, e model.MergedEntity) []model.ValidationIssue {
	if _, ok := cfg.ranks()[e.Phase]; ok {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityWarning,
		Rule:     RuleUnknownPhase,
		Subject:  e.IdentityKey,
		Field:    "phase",
		Message:  fmt.Sprintf("unrecognised phase %q", e.Phase),
		Action:   "treated as unknown",
	}}
}

func checkHighestPhase(cfg Config, e model.MergedEntity) []model.ValidationIssue {
	if e.HighestPhaseReached == "" || e.Phase == "" {
		return nil
	}
	ranks := cfg.ranks()
	if ranks.Rank(e.HighestPhaseReached) <= ranks.Rank(e.Phase) {
		return nil
	}
	return []model.ValidationIssue{{
		Severity: model.SeverityError,
		Rule:     RuleHighestPhaseOrder,
		Subject:  e.IdentityKey,
		Field:    "highest_phase_reached",
		Message:  fmt.Sprintf("highest phase %s is behind current phase %s", e.HighestPhaseReached, e.Phase),
		Action:   "recompute merge",
	}}
}
