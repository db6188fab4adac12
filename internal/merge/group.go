package merge

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/model"
)

// All resolves identity keys for a batch of sightings and folds each group
// into one record. Records are returned sorted by identity key. Sightings
// without any usable name are skipped with an error issue. An empty batch
// yields no records and no issues.
func (m *Engine) All(candidates []model.CandidateEntity, resolver *identity.Resolver) ([]model.MergedEntity, []model.ValidationIssue) {
	if len(candidates) == 0 {
		return nil, nil
	}

	resolutions, issues := resolver.Resolve(candidates)

	groups := make(map[string]model.MergedEntity)
	for i, c := range candidates {
		key := resolutions[i].Key
		if key == "" {
			issues = append(issues, model.ValidationIssue{
				Severity: model.SeverityError,
				Rule:     "identity_missing",
				Subject:  fmt.Sprintf("candidate[%d]", i),
				Field:    "name",
				Message:  "candidate has neither a name nor an alias code",
				Action:   "excluded from merge",
			})
			continue
		}
		incoming := m.FromCandidate(key, c)
		if existing, ok := groups[key]; ok {
			groups[key] = m.Merge(existing, incoming)
		} else {
			groups[key] = incoming
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.MergedEntity, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}

	zap.L().Debug("merge: grouped candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("entities", len(out)),
		zap.Int("issues", len(issues)),
	)

	return out, issues
}
