package model

import "strings"

// ValueKind identifies which quantity a scalar estimate measures. Estimates
// of different kinds never enter the same consensus.
type ValueKind string

const (
	KindPrevalence    ValueKind = "prevalence"
	KindIncidence     ValueKind = "incidence"
	KindFailureRate   ValueKind = "failure_rate"
	KindTreatmentRate ValueKind = "treatment_rate"
)

// ParseValueKind maps loose upstream spellings ("failureRate",
// "Failure Rate") onto a ValueKind. Returns false for unknown kinds.
func ParseValueKind(s string) (ValueKind, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
	switch k {
	case "prevalence":
		return KindPrevalence, true
	case "incidence":
		return KindIncidence, true
	case "failurerate":
		return KindFailureRate, true
	case "treatmentrate":
		return KindTreatmentRate, true
	default:
		return "", false
	}
}

// QualityTier is a coarse reliability bucket for a source.
type QualityTier string

const (
	Tier1       QualityTier = "tier1"
	Tier2       QualityTier = "tier2"
	Tier3       QualityTier = "tier3"
	TierUnknown QualityTier = "unknown"
)

// ParseQualityTier accepts "Tier1", "tier 1", "1" and similar. Anything
// unrecognised is TierUnknown.
func ParseQualityTier(s string) QualityTier {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(t)
	switch t {
	case "tier1", "1":
		return Tier1
	case "tier2", "2":
		return Tier2
	case "tier3", "3":
		return Tier3
	default:
		return TierUnknown
	}
}

// SourceEstimate is one scalar observation from one source. Estimates are
// facts: nothing downstream modifies them, they are passed by value.
type SourceEstimate struct {
	SourceID   string      `json:"source_id"`
	Value      float64     `json:"value"`
	Kind       ValueKind   `json:"kind"`
	Tier       QualityTier `json:"tier"`
	Year       *int        `json:"year,omitempty"`
	SampleSize *int64      `json:"sample_size,omitempty"`

	// Provenance, carried through for audit only.
	Title      string `json:"title,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	URL        string `json:"url,omitempty"`
}
