package model

// Severity of a ValidationIssue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationIssue is a non-fatal diagnostic attached to output. Issues
// never stop a run.
type ValidationIssue struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Action   string   `json:"action,omitempty"`
}

// CountBySeverity tallies issues per severity.
func CountBySeverity(issues []ValidationIssue) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, is := range issues {
		counts[is.Severity]++
	}
	return counts
}
