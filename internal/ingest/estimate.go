package ingest

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/eletricells/vantdge/internal/model"
)

// Estimate decodes one estimate record. The bool is false when the record
// cannot be used at all (no numeric value or no recognised kind).
// subject labels issues, e.g. "ra/estimates[3]".
func Estimate(rec Record, subject string) (model.SourceEstimate, bool, []model.ValidationIssue) {
	var (
		e      model.SourceEstimate
		issues []model.ValidationIssue
	)

	e.SourceID = stringField(rec, "source_id", "sourceId", "id")
	e.Title = stringField(rec, "title")
	e.Identifier = stringField(rec, "identifier", "pmid", "doi")
	e.URL = stringField(rec, "url", "link")
	if e.SourceID == "" {
		e.SourceID = firstNonEmpty(e.Identifier, e.URL)
	}
	if e.SourceID != "" {
		subject = fmt.Sprintf("%s (%s)", subject, e.SourceID)
	}

	raw, ok := field(rec, "value", "estimate")
	if !ok {
		issues = append(issues, issue(model.SeverityError, subject, "value", "missing value"))
		return e, false, issues
	}
	v, err := numeric(raw)
	if err != nil {
		issues = append(issues, issue(model.SeverityError, subject, "value", "value %q is not numeric", cast.ToString(raw)))
		return e, false, issues
	}
	e.Value = v

	kindRaw := stringField(rec, "kind", "value_kind", "valueKind")
	kind, ok := model.ParseValueKind(kindRaw)
	if !ok {
		issues = append(issues, issue(model.SeverityError, subject, "kind", "unrecognised value kind %q", kindRaw))
		return e, false, issues
	}
	e.Kind = kind

	tierRaw := stringField(rec, "tier", "quality_tier", "qualityTier")
	e.Tier = model.ParseQualityTier(tierRaw)
	if e.Tier == model.TierUnknown && tierRaw != "" {
		issues = append(issues, issue(model.SeverityInfo, subject, "tier", "unrecognised quality tier %q, using unknown", tierRaw))
	}

	if raw, ok := field(rec, "year", "publication_year"); ok {
		if y, err := cast.ToIntE(raw); err == nil && y > 0 {
			e.Year = &y
		} else {
			issues = append(issues, issue(model.SeverityWarning, subject, "year", "invalid year %q ignored", cast.ToString(raw)))
		}
	}

	if raw, ok := field(rec, "sample_size", "sampleSize", "n"); ok {
		n, err := numeric(raw)
		if err == nil && n >= 0 {
			size := int64(n)
			e.SampleSize = &size
		} else {
			issues = append(issues, issue(model.SeverityWarning, subject, "sample_size", "invalid sample size %q ignored", cast.ToString(raw)))
		}
	}

	return e, true, issues
}

// Estimates decodes a list of estimate records, skipping unusable ones.
func Estimates(recs []Record, prefix string) ([]model.SourceEstimate, []model.ValidationIssue) {
	var (
		out    []model.SourceEstimate
		issues []model.ValidationIssue
	)
	for i, rec := range recs {
		e, ok, is := Estimate(rec, fmt.Sprintf("%s[%d]", prefix, i))
		issues = append(issues, is...)
		if ok {
			out = append(out, e)
		}
	}
	return out, issues
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
