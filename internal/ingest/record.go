// Package ingest converts untyped upstream records (decoded JSON or YAML
// maps with optional, loosely typed keys) into the typed estimate and
// candidate shapes the engine consumes. Missing or invalid fields become
// explicit zero values or nil pointers plus an issue; nothing here fails a
// whole batch because of one record.
package ingest

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/eletricells/vantdge/internal/model"
)

// Record is one untyped upstream record.
type Record = map[string]any

var missingMarkers = map[string]bool{
	"":        true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"null":    true,
	"nil":     true,
	"unknown": true,
	"-":       true,
}

// isMissing treats nil and placeholder strings as absent.
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	}
	return false
}

// field returns the first present, non-missing value under any of the
// given keys. Keys are matched exactly, then ignoring case and separators.
func field(rec Record, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && !isMissing(v) {
			return v, true
		}
	}
	for rk, v := range rec {
		fk := foldKey(rk)
		for _, k := range keys {
			if foldKey(k) == fk && !isMissing(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func foldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func stringField(rec Record, keys ...string) string {
	v, ok := field(rec, keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// numeric parses numbers that arrive as strings with thousands separators
// or a trailing percent sign.
func numeric(v any) (float64, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "_", "")
		v = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(v)
}

func stringList(v any) []string {
	switch l := v.(type) {
	case string:
		if s := strings.TrimSpace(l); s != "" {
			return []string{s}
		}
		return nil
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if isMissing(item) {
				continue
			}
			out = append(out, strings.TrimSpace(cast.ToString(item)))
		}
		return out
	default:
		if s := strings.TrimSpace(cast.ToString(v)); s != "" {
			return []string{s}
		}
		return nil
	}
}

func issue(sev model.Severity, subject, fieldName, format string, args ...any) model.ValidationIssue {
	return model.ValidationIssue{
		Severity: sev,
		Rule:     "ingest",
		Subject:  subject,
		Field:    fieldName,
		Message:  fmt.Sprintf(format, args...),
	}
}
