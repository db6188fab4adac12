package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eletricells/vantdge/internal/model"
)

func TestEstimate_LooseRecord(t *testing.T) {
	e, ok, issues := Estimate(Record{
		"sourceId":    "PMID:123",
		"value":       "12,500",
		"valueKind":   "Prevalence",
		"qualityTier": "Tier 1",
		"year":        "2022",
		"sample_size": 2500000,
		"title":       "  RA burden study ",
		"url":         "https://example.org/a",
	}, "estimates[0]")

	require.True(t, ok)
	assert.Empty(t, issues)
	assert.Equal(t, "PMID:123", e.SourceID)
	assert.InDelta(t, 12500, e.Value, 1e-9)
	assert.Equal(t, model.KindPrevalence, e.Kind)
	assert.Equal(t, model.Tier1, e.Tier)
	require.NotNil(t, e.Year)
	assert.Equal(t, 2022, *e.Year)
	require.NotNil(t, e.SampleSize)
	assert.Equal(t, int64(2500000), *e.SampleSize)
	assert.Equal(t, "RA burden study", e.Title)
}

func TestEstimate_PercentString(t *testing.T) {
	e, ok, _ := Estimate(Record{"value": "150%", "kind": "failure_rate"}, "x")
	require.True(t, ok)
	assert.InDelta(t, 150, e.Value, 1e-9, "domain checks happen downstream, never here")
}

func TestEstimate_MissingFieldsAreNil(t *testing.T) {
	e, ok, issues := Estimate(Record{"value": 3.5, "kind": "incidence", "year": "N/A", "sample_size": nil, "tier": "unknown"}, "x")
	require.True(t, ok)
	assert.Empty(t, issues)
	assert.Nil(t, e.Year)
	assert.Nil(t, e.SampleSize)
	assert.Equal(t, model.TierUnknown, e.Tier)
}

func TestEstimate_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"no value", Record{"kind": "prevalence"}, "value"},
		{"sentinel value", Record{"value": "n/a", "kind": "prevalence"}, "value"},
		{"non numeric", Record{"value": "about ten", "kind": "prevalence"}, "value"},
		{"unknown kind", Record{"value": 10, "kind": "mortality"}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, issues := Estimate(tt.rec, "x")
			assert.False(t, ok)
			require.Len(t, issues, 1)
			assert.Equal(t, model.SeverityError, issues[0].Severity)
			assert.Equal(t, tt.field, issues[0].Field)
		})
	}
}

func TestEstimate_BadOptionalFieldsWarn(t *testing.T) {
	e, ok, issues := Estimate(Record{"value": 1, "kind": "incidence", "year": "recent", "sample_size": -5, "tier": "gold"}, "x")
	require.True(t, ok)
	assert.Nil(t, e.Year)
	assert.Nil(t, e.SampleSize)
	require.Len(t, issues, 3)
	assert.Equal(t, model.SeverityInfo, issues[0].Severity)
	assert.Equal(t, "year", issues[1].Field)
	assert.Equal(t, "sample_size", issues[2].Field)
}

func TestCandidate_LooseRecord(t *testing.T) {
	c, ok, issues := Candidate(Record{
		"canonicalNameRaw":  "Drug A",
		"aliasCode":         "ABC-123",
		"phase":             "Phase II",
		"developmentStatus": "Terminated",
		"statusDetail":      map[string]any{"date": "2023-05", "reason": "lack of efficacy"},
		"attributes":        map[string]any{"manufacturer": "Acme", "cas_number": "N/A", "targets": []any{"JAK1"}},
		"sourceRefs":        []any{"NCT001", nil, "https://news.example/a"},
		"origin":            "discontinuations",
		"override":          "false",
	}, "candidates[0]")

	require.True(t, ok)
	assert.Empty(t, issues)
	assert.Equal(t, "Drug A", c.Name)
	assert.Equal(t, "ABC-123", c.AliasCode)
	assert.Equal(t, model.Phase2, c.Phase)
	assert.Equal(t, model.StatusDiscontinued, c.Status)
	require.NotNil(t, c.StatusDetail)
	assert.Equal(t, model.StatusDetail{Date: "2023-05", Reason: "lack of efficacy"}, *c.StatusDetail)
	assert.Equal(t, map[string]any{"manufacturer": "Acme", "targets": []any{"JAK1"}}, c.Attributes)
	assert.Equal(t, []string{"NCT001", "https://news.example/a"}, c.SourceRefs)
	assert.Equal(t, "discontinuations", c.Origin)
	assert.False(t, c.StatusOverride)
}

func TestCandidate_FlatStatusFields(t *testing.T) {
	c, ok, _ := Candidate(Record{"name": "X", "status": "on hold", "status_date": "2021", "status_reason": "clinical hold"}, "x")
	require.True(t, ok)
	assert.Equal(t, model.StatusOnHold, c.Status)
	assert.Equal(t, &model.StatusDetail{Date: "2021", Reason: "clinical hold"}, c.StatusDetail)
}

func TestCandidate_DetailOnActiveDropped(t *testing.T) {
	c, ok, issues := Candidate(Record{"name": "X", "status": "recruiting", "status_reason": "n/a", "status_date": "2020"}, "x")
	require.True(t, ok)
	assert.Equal(t, model.StatusActive, c.Status)
	assert.Nil(t, c.StatusDetail)
	require.Len(t, issues, 1)
	assert.Equal(t, model.SeverityWarning, issues[0].Severity)
}

func TestCandidate_StatusLabels(t *testing.T) {
	tests := []struct {
		status string
		want   model.DevelopmentStatus
		info   bool
	}{
		{"Discontinued (safety)", model.StatusDiscontinued, false},
		{"Terminated due to lack of efficacy", model.StatusDiscontinued, false},
		{"Active, not recruiting", model.StatusActive, false},
		{"Under evaluation", model.StatusActive, true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c, ok, issues := Candidate(Record{"name": "X", "status": tt.status}, "x")
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Status)
			if !tt.info {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, 1)
			assert.Equal(t, model.SeverityInfo, issues[0].Severity)
			assert.Equal(t, "status", issues[0].Field)
			assert.Contains(t, issues[0].Message, "Under evaluation")
		})
	}
}

func TestCandidate_PhaseWithYear(t *testing.T) {
	c, ok, issues := Candidate(Record{"name": "X", "phase": "Phase 1 (2023)"}, "x")
	require.True(t, ok)
	assert.Empty(t, issues)
	assert.Equal(t, model.Phase1, c.Phase)
}

func TestCandidate_NoNameRejected(t *testing.T) {
	_, ok, issues := Candidate(Record{"name": "  ", "alias_code": "none", "phase": "phase 1"}, "x")
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, model.SeverityError, issues[0].Severity)
}

func TestCandidates_SkipsUnusable(t *testing.T) {
	out, issues := Candidates([]Record{{"name": "A"}, {}, {"code": "B-1", "source_refs": "NCT9"}}, "ra/candidates")
	require.Len(t, out, 2)
	assert.Equal(t, "B-1", out[1].AliasCode)
	assert.Equal(t, []string{"NCT9"}, out[1].SourceRefs)
	require.Len(t, issues, 1)
	assert.True(t, strings.HasPrefix(issues[0].Subject, "ra/candidates[1]"))
}

const targetsYAML = `
targets:
  - id: ra
    contexts: [Rheumatoid Arthritis, " "]
    kinds: [prevalence, mortality]
    estimates:
      - {source_id: s1, value: 100000, kind: prevalence, tier: tier1, year: 2022}
      - {source_id: s2, value: oops, kind: prevalence}
    candidates:
      - {name: Olumiant, phase: Marketed, status: active}
  - estimates:
      - {value: 12, kind: incidence}
`

func TestDecode_Targets(t *testing.T) {
	targets, issues, err := Decode(strings.NewReader(targetsYAML))
	require.NoError(t, err)
	require.Len(t, targets, 2)

	ra := targets[0]
	assert.Equal(t, "ra", ra.ID)
	assert.Equal(t, []string{"Rheumatoid Arthritis"}, ra.Contexts)
	assert.Equal(t, []model.ValueKind{model.KindPrevalence}, ra.Kinds)
	require.Len(t, ra.Estimates, 1)
	assert.Equal(t, "s1", ra.Estimates[0].SourceID)
	require.Len(t, ra.Candidates, 1)
	assert.Equal(t, model.PhaseApproved, ra.Candidates[0].Phase)

	assert.Equal(t, "target-2", targets[1].ID)
	require.Len(t, targets[1].Estimates, 1)

	require.Len(t, issues, 2)
	assert.Equal(t, "kinds", issues[0].Field)
	assert.Equal(t, "value", issues[1].Field)
}

func TestDecode_BareTargetJSON(t *testing.T) {
	targets, issues, err := Decode(strings.NewReader(`{"id": "ln", "estimates": [{"value": 0.4, "kind": "incidence", "tier": 2}]}`))
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, targets, 1)
	assert.Equal(t, "ln", targets[0].ID)
	assert.Equal(t, model.Tier2, targets[0].Estimates[0].Tier)
}

func TestDecode_EmptyAndMalformed(t *testing.T) {
	targets, issues, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Empty(t, issues)

	_, _, err = Decode(strings.NewReader("targets: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: parse document")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(targetsYAML), 0o644))

	targets, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, targets, 2)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
