// Package merge folds candidate entity sightings that share an identity
// key into one canonical record.
//
// Merge is associative, commutative over record content and idempotent:
// any fold order over the same candidates yields the same record. Terminal
// statuses (discontinued, failed, on hold) are sticky; only an explicit
// override source can move a record back to active. Recency is never a
// tie-break here; phase rank and status terminality are.
package merge

import (
	"strings"

	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/model"
)

// Config configures the merge engine.
type Config struct {
	PhaseRanks model.PhaseRanks `yaml:"phase_ranks" mapstructure:"phase_ranks"`

	// ListAttributes are attribute keys whose values are always sets, even
	// when a sighting supplies a single value.
	ListAttributes []string `yaml:"list_attributes" mapstructure:"list_attributes"`
}

// DefaultConfig returns the standard phase ranks and set-valued attributes.
func DefaultConfig() Config {
	return Config{
		PhaseRanks:     model.DefaultPhaseRanks(),
		ListAttributes: []string{"indications", "mechanisms", "targets", "sponsors", "trial_ids"},
	}
}

// Engine merges entities under a fixed phase-rank table.
type Engine struct {
	ranks    model.PhaseRanks
	listKeys map[string]bool
}

// NewEngine creates a merge engine. A nil or empty rank table falls back
// to the default ranks.
func NewEngine(cfg Config) *Engine {
	ranks := cfg.PhaseRanks
	if len(ranks) == 0 {
		ranks = model.DefaultPhaseRanks()
	}
	listKeys := make(map[string]bool, len(cfg.ListAttributes))
	for _, k := range cfg.ListAttributes {
		listKeys[k] = true
	}
	return &Engine{ranks: ranks, listKeys: listKeys}
}

// Ranks returns the engine's phase-rank table.
func (m *Engine) Ranks() model.PhaseRanks {
	return m.ranks
}

// FromCandidate lifts one sighting into a single-source MergedEntity in
// canonical form. A status detail on an active sighting is discarded.
func (m *Engine) FromCandidate(key string, c model.CandidateEntity) model.MergedEntity {
	phase := c.Phase
	if phase == "" {
		phase = model.PhaseUnknown
	}
	status := c.Status
	if status == "" {
		status = model.StatusActive
	}

	var detail *model.StatusDetail
	if status.Terminal() && c.StatusDetail != nil {
		d := model.StatusDetail{
			Date:   strings.TrimSpace(c.StatusDetail.Date),
			Reason: strings.TrimSpace(c.StatusDetail.Reason),
		}
		if d != (model.StatusDetail{}) {
			detail = &d
		}
	}

	return model.MergedEntity{
		IdentityKey:         key,
		Name:                strings.TrimSpace(c.Name),
		AliasCode:           strings.TrimSpace(c.AliasCode),
		Phase:               phase,
		HighestPhaseReached: phase,
		Status:              status,
		StatusDetail:        detail,
		StatusOverride:      c.StatusOverride,
		Attributes:          normalizeAttributes(c.Attributes, m.listKeys),
		MergedSourceRefs:    model.SortedUnion(c.SourceRefs),
		NameVariants:        model.SortedUnion([]string{c.Name}),
		Origins:             model.SortedUnion([]string{c.Origin}),
	}
}

// MergeCandidate folds one sighting into an existing record.
func (m *Engine) MergeCandidate(existing model.MergedEntity, c model.CandidateEntity) model.MergedEntity {
	return m.Merge(existing, m.FromCandidate(existing.IdentityKey, c))
}

// Merge combines two records for the same identity key. Neither input is
// modified.
func (m *Engine) Merge(existing, incoming model.MergedEntity) model.MergedEntity {
	key := pickString(existing.IdentityKey, incoming.IdentityKey)

	win := claimOf(existing)
	if m.outranks(claimOf(incoming), win) > 0 {
		win = claimOf(incoming)
	}

	out := model.MergedEntity{
		IdentityKey:         key,
		Name:                pickName(key, existing.Name, incoming.Name),
		AliasCode:           pickString(existing.AliasCode, incoming.AliasCode),
		HighestPhaseReached: m.ranks.MoreAdvanced(m.reached(existing), m.reached(incoming)),
		Status:              win.status,
		StatusOverride:      win.override,
		Attributes:          mergeAttributes(existing.Attributes, incoming.Attributes),
		MergedSourceRefs:    model.SortedUnion(existing.MergedSourceRefs, incoming.MergedSourceRefs),
		NameVariants:        model.SortedUnion(existing.NameVariants, incoming.NameVariants),
		Origins:             model.SortedUnion(existing.Origins, incoming.Origins),
		ContextualStatus:    m.mergeContexts(existing.ContextualStatus, incoming.ContextualStatus),
	}
	if win.detail != nil {
		d := *win.detail
		out.StatusDetail = &d
	}

	if win.status.Terminal() {
		out.Phase = win.phase
	} else {
		out.Phase = out.HighestPhaseReached
	}

	return out
}

func (m *Engine) reached(e model.MergedEntity) model.Phase {
	switch {
	case e.HighestPhaseReached != "" && e.Phase != "":
		return m.ranks.MoreAdvanced(e.HighestPhaseReached, e.Phase)
	case e.HighestPhaseReached != "":
		return e.HighestPhaseReached
	case e.Phase != "":
		return e.Phase
	default:
		return model.PhaseUnknown
	}
}

// pickString keeps the non-empty value; two different values resolve to
// the smaller.
func pickString(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case b < a:
		return b
	default:
		return a
	}
}

// pickName prefers the name that normalises to the identity key, then the
// smaller name.
func pickName(key, a, b string) string {
	aKey := a != "" && identity.Normalize(a) == key
	bKey := b != "" && identity.Normalize(b) == key
	switch {
	case aKey && !bKey:
		return a
	case bKey && !aKey:
		return b
	default:
		return pickString(a, b)
	}
}

var approvalOrder = map[model.ApprovalStatus]int{
	model.ApprovalApproved:        5,
	model.ApprovalInvestigational: 4,
	model.ApprovalOnHold:          3,
	model.ApprovalDiscontinued:    2,
	model.ApprovalFailed:          1,
}

func (m *Engine) mergeContexts(a, b map[string]model.ContextualStatus) map[string]model.ContextualStatus {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]model.ContextualStatus, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok || m.contextLess(av, bv) {
			out[k] = bv
		}
	}
	return out
}

// contextLess reports whether b should replace a: the stronger approval
// status wins, then the more advanced phase.
func (m *Engine) contextLess(a, b model.ContextualStatus) bool {
	if oa, ob := approvalOrder[a.Status], approvalOrder[b.Status]; oa != ob {
		return ob > oa
	}
	if a.Phase == b.Phase {
		return false
	}
	return m.ranks.MoreAdvanced(a.Phase, b.Phase) == b.Phase
}
