package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/model"
)

func rules(issues []model.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Rule
	}
	return out
}

func result(kind model.ValueKind, conf model.Confidence, values ...float64) model.ConsensusResult {
	r := model.ConsensusResult{Kind: kind, Confidence: conf, EstimateCount: len(values), Values: values}
	if len(values) > 0 {
		r.RangeLow, r.RangeHigh = values[0], values[0]
		for _, v := range values {
			r.RangeLow = math.Min(r.RangeLow, v)
			r.RangeHigh = math.Max(r.RangeHigh, v)
		}
		r.RecommendedValue = consensus.Median(values)
	}
	return r
}

func TestValidate_ConsensusRules(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name   string
		result model.ConsensusResult
		want   []string
	}{
		{
			name:   "clean",
			result: result(model.KindPrevalence, model.ConfidenceHigh, 100000, 120500, 150000),
			want:   []string{},
		},
		{
			name:   "wide spread",
			result: result(model.KindIncidence, model.ConfidenceMedium, 12, 250),
			want:   []string{RuleWideSpread},
		},
		{
			name:   "round numbers",
			result: result(model.KindPrevalence, model.ConfidenceHigh, 100000, 120000),
			want:   []string{RuleRoundNumbers},
		},
		{
			name:   "single round number is fine",
			result: result(model.KindPrevalence, model.ConfidenceMedium, 100000),
			want:   []string{},
		},
		{
			name:   "failure rate range",
			result: result(model.KindFailureRate, model.ConfidenceMedium, 10, 70),
			want:   []string{RuleFailureRateRange},
		},
		{
			name:   "low treatment rate",
			result: result(model.KindTreatmentRate, model.ConfidenceMedium, 12, 15),
			want:   []string{RuleLowTreatmentRate},
		},
		{
			name:   "low confidence with estimates",
			result: result(model.KindPrevalence, model.ConfidenceLow, 5100, 5200),
			want:   []string{RuleLowConfidence},
		},
		{
			name:   "empty result is not low-confidence noise",
			result: model.ConsensusResult{Kind: model.KindPrevalence, Confidence: model.ConfidenceLow, Rationale: consensus.NoEstimatesRationale},
			want:   []string{},
		},
		{
			name:   "domain violation",
			result: result(model.KindFailureRate, model.ConfidenceMedium, 40, 150),
			want:   []string{RuleDomain, RuleDomain, RuleFailureRateRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate([]model.ConsensusResult{tt.result}, nil)
			assert.Equal(t, tt.want, rules(got))
		})
	}
}

func TestValidate_DomainIssueIsError(t *testing.T) {
	v := New(DefaultConfig())
	got := v.Validate([]model.ConsensusResult{result(model.KindTreatmentRate, model.ConfidenceMedium, 30, -1)}, nil)

	var domain []model.ValidationIssue
	for _, is := range got {
		if is.Rule == RuleDomain {
			domain = append(domain, is)
		}
	}
	require.Len(t, domain, 2)
	for _, is := range domain {
		assert.Equal(t, model.SeverityError, is.Severity)
	}
	assert.Equal(t, "range_low", domain[0].Field)
	assert.Equal(t, "values[1]", domain[1].Field)
}

func TestValidate_SpreadFallsBackToRange(t *testing.T) {
	v := New(DefaultConfig())
	r := model.ConsensusResult{Kind: model.KindPrevalence, Confidence: model.ConfidenceMedium,
		EstimateCount: 3, RangeLow: 10, RangeHigh: 500, RecommendedValue: 50}
	assert.Equal(t, []string{RuleWideSpread}, rules(v.Validate([]model.ConsensusResult{r}, nil)))
}

func TestValidate_EntityRules(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name   string
		entity model.MergedEntity
		want   []string
	}{
		{
			name:   "clean",
			entity: model.MergedEntity{IdentityKey: "x", Phase: model.Phase2, HighestPhaseReached: model.Phase2, Status: model.StatusActive},
			want:   []string{},
		},
		{
			name:   "missing key",
			entity: model.MergedEntity{Phase: model.Phase1, Status: model.StatusActive},
			want:   []string{RuleIdentityMissing},
		},
		{
			name:   "terminal without detail",
			entity: model.MergedEntity{IdentityKey: "x", Phase: model.Phase2, Status: model.StatusFailed},
			want:   []string{RuleTerminalNoDetail},
		},
		{
			name: "active with detail",
			entity: model.MergedEntity{IdentityKey: "x", Phase: model.Phase2, Status: model.StatusActive,
				StatusDetail: &model.StatusDetail{Reason: "stale"}},
			want: []string{RuleActiveWithDetail},
		},
		{
			name:   "unknown phase",
			entity: model.MergedEntity{IdentityKey: "x", Phase: "phase9", Status: model.StatusActive},
			want:   []string{RuleUnknownPhase},
		},
		{
			name:   "highest phase behind current",
			entity: model.MergedEntity{IdentityKey: "x", Phase: model.Phase3, HighestPhaseReached: model.Phase1, Status: model.StatusActive},
			want:   []string{RuleHighestPhaseOrder},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(nil, []model.MergedEntity{tt.entity})
			assert.Equal(t, tt.want, rules(got))
		})
	}
}

func TestValidate_PanickingRuleReported(t *testing.T) {
	boom := ConsensusRule{Name: "boom", Check: func(Config, model.ConsensusResult) []model.ValidationIssue {
		var m map[string]int
		m["x"] = 1
		return nil
	}}
	nilCheck := EntityRule{Name: "nil_check"}

	v := New(DefaultConfig(), WithConsensusRules(boom), WithEntityRules(nilCheck))
	got := v.Validate(
		[]model.ConsensusResult{result(model.KindPrevalence, model.ConfidenceHigh, 1)},
		[]model.MergedEntity{{IdentityKey: "x"}},
	)

	require.Len(t, got, 2)
	assert.Equal(t, "boom", got[0].Rule)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Equal(t, "nil_check", got[1].Rule)
	assert.Equal(t, "x", got[1].Subject)
}

func TestValidate_EmptyInput(t *testing.T) {
	assert.Empty(t, New(DefaultConfig()).Validate(nil, nil))
}

func TestValidate_ZeroThresholdsDisableRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpreadRatio = 0
	cfg.RoundNumber = 0
	v := New(cfg)
	got := v.Validate([]model.ConsensusResult{result(model.KindPrevalence, model.ConfidenceHigh, 10000, 900000)}, nil)
	assert.Empty(t, got)
}
