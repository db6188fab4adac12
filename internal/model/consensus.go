package model

// Confidence classifies how much a consensus value can be trusted.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConsensusResult is the reduction of all estimates of one kind for one
// target. It is recomputed from scratch on every run.
type ConsensusResult struct {
	Kind                   ValueKind  `json:"kind"`
	RecommendedValue       float64    `json:"recommended_value"`
	SimpleMedian           float64    `json:"simple_median"`
	RangeLow               float64    `json:"range_low"`
	RangeHigh              float64    `json:"range_high"`
	EstimateCount          int        `json:"estimate_count"`
	Tier1Count             int        `json:"tier1_count"`
	CoefficientOfVariation float64    `json:"coefficient_of_variation"`
	Confidence             Confidence `json:"confidence"`
	Rationale              string     `json:"rationale"`

	// Values are the filtered raw values in input order.
	Values    []float64 `json:"values,omitempty"`
	SourceIDs []string  `json:"source_ids,omitempty"`
}

// Empty reports whether no estimate survived filtering.
func (r ConsensusResult) Empty() bool {
	return r.EstimateCount == 0
}
