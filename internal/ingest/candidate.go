package ingest

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/eletricells/vantdge/internal/model"
)

// Candidate decodes one candidate entity record. The bool is false when
// the record has neither a name nor an alias code.
func Candidate(rec Record, subject string) (model.CandidateEntity, bool, []model.ValidationIssue) {
	var (
		c      model.CandidateEntity
		issues []model.ValidationIssue
	)

	c.Name = stringField(rec, "name", "canonical_name_raw", "canonicalNameRaw", "drug_name")
	c.AliasCode = stringField(rec, "alias_code", "aliasCode", "code")
	if c.Name == "" && c.AliasCode == "" {
		issues = append(issues, issue(model.SeverityError, subject, "name", "candidate has neither a name nor an alias code"))
		return c, false, issues
	}
	subject = fmt.Sprintf("%s (%s)", subject, firstNonEmpty(c.Name, c.AliasCode))

	phaseRaw := stringField(rec, "phase", "highest_phase")
	c.Phase = model.ParsePhase(phaseRaw)
	if c.Phase == model.PhaseUnknown && phaseRaw != "" {
		issues = append(issues, issue(model.SeverityInfo, subject, "phase", "unrecognised phase %q, using unknown", phaseRaw))
	}

	statusRaw := stringField(rec, "status", "development_status", "developmentStatus")
	status, known := model.LookupDevelopmentStatus(statusRaw)
	c.Status = status
	if !known && statusRaw != "" {
		issues = append(issues, issue(model.SeverityInfo, subject, "status", "unrecognised status %q, using active", statusRaw))
	}

	c.StatusDetail = statusDetail(rec)
	if c.StatusDetail != nil && !c.Status.Terminal() {
		issues = append(issues, issue(model.SeverityWarning, subject, "status_detail", "status detail on %s candidate dropped", c.Status))
		c.StatusDetail = nil
	}

	if raw, ok := field(rec, "attributes", "attrs"); ok {
		attrs, err := cast.ToStringMapE(raw)
		if err != nil {
			issues = append(issues, issue(model.SeverityWarning, subject, "attributes", "attributes are not a map, ignored"))
		} else if len(attrs) > 0 {
			c.Attributes = cleanAttributes(attrs)
		}
	}

	if raw, ok := field(rec, "source_refs", "sourceRefs", "sources"); ok {
		c.SourceRefs = stringList(raw)
	}
	c.Origin = stringField(rec, "origin", "batch")

	if raw, ok := field(rec, "status_override", "statusOverride", "override"); ok {
		b, err := cast.ToBoolE(raw)
		if err != nil {
			issues = append(issues, issue(model.SeverityWarning, subject, "status_override", "invalid override flag %q ignored", cast.ToString(raw)))
		}
		c.StatusOverride = b
	}

	return c, true, issues
}

// Candidates decodes a list of candidate records, skipping unusable ones.
func Candidates(recs []Record, prefix string) ([]model.CandidateEntity, []model.ValidationIssue) {
	var (
		out    []model.CandidateEntity
		issues []model.ValidationIssue
	)
	for i, rec := range recs {
		c, ok, is := Candidate(rec, fmt.Sprintf("%s[%d]", prefix, i))
		issues = append(issues, is...)
		if ok {
			out = append(out, c)
		}
	}
	return out, issues
}

// statusDetail reads a nested status_detail map or flat status_date and
// status_reason keys.
func statusDetail(rec Record) *model.StatusDetail {
	var d model.StatusDetail
	if raw, ok := field(rec, "status_detail", "statusDetail"); ok {
		if m, err := cast.ToStringMapE(raw); err == nil {
			d.Date = stringField(m, "date")
			d.Reason = stringField(m, "reason")
		}
	}
	if d.Date == "" {
		d.Date = stringField(rec, "status_date", "discontinuation_date")
	}
	if d.Reason == "" {
		d.Reason = stringField(rec, "status_reason", "discontinuation_reason", "reason")
	}
	if d == (model.StatusDetail{}) {
		return nil
	}
	return &d
}

func cleanAttributes(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" || isMissing(v) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
