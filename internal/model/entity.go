package model

import (
	"sort"
	"strings"
	"unicode"
)

// Phase is a clinical or regulatory development phase.
type Phase string

const (
	PhaseApproved         Phase = "approved"
	PhaseRegulatoryFiling Phase = "regulatory_filing"
	Phase3                Phase = "phase3"
	Phase2                Phase = "phase2"
	Phase1                Phase = "phase1"
	PhasePreclinical      Phase = "preclinical"
	PhaseUnknown          Phase = "unknown"
)

// PhaseRanks orders phases; a lower rank is more advanced.
type PhaseRanks map[Phase]int

// DefaultPhaseRanks returns the standard ordering from Approved (1) to
// Unknown (7).
func DefaultPhaseRanks() PhaseRanks {
	return PhaseRanks{
		PhaseApproved:         1,
		PhaseRegulatoryFiling: 2,
		Phase3:                3,
		Phase2:                4,
		Phase1:                5,
		PhasePreclinical:      6,
		PhaseUnknown:          7,
	}
}

// Rank returns the rank of p. Phases missing from the table rank as
// Unknown, or below every known phase when Unknown is missing too.
func (r PhaseRanks) Rank(p Phase) int {
	if n, ok := r[p]; ok {
		return n
	}
	if n, ok := r[PhaseUnknown]; ok {
		return n
	}
	worst := 0
	for _, n := range r {
		if n > worst {
			worst = n
		}
	}
	return worst + 1
}

// MoreAdvanced returns whichever of a and b ranks lower. Equal ranks
// resolve to the lexically smaller phase name so the choice never depends
// on argument order.
func (r PhaseRanks) MoreAdvanced(a, b Phase) Phase {
	ra, rb := r.Rank(a), r.Rank(b)
	switch {
	case ra < rb:
		return a
	case rb < ra:
		return b
	case b < a:
		return b
	default:
		return a
	}
}

// ParsePhase maps upstream phase labels ("Phase 3", "phase III",
// "PHASE2", "Phase 1b", "Marketed", "NDA filed", "Phase 2/3") onto a
// Phase. Only numerals directly after "phase" count, so years and trial
// numbers in the label are ignored. Combined phases resolve to the later
// one. Phase 4 is post-marketing and maps to Approved.
func ParsePhase(s string) Phase {
	toks := labelTokens(s)
	if len(toks) == 0 {
		return PhaseUnknown
	}
	compact := strings.Join(toks, "")
	switch {
	case strings.Contains(compact, "approved") || strings.Contains(compact, "marketed") || compact == "launched":
		return PhaseApproved
	case strings.Contains(compact, "filing") || strings.Contains(compact, "filed") ||
		hasToken(toks, "nda", "bla", "maa") || strings.Contains(compact, "registration") || strings.Contains(compact, "regulatory"):
		return PhaseRegulatoryFiling
	case strings.Contains(compact, "preclinical") || strings.Contains(compact, "discovery"):
		return PhasePreclinical
	}
	if p, ok := phaseFromTokens(toks); ok {
		return p
	}
	return PhaseUnknown
}

// phaseFromTokens reads the numerals following "phase" (or a "phaseN",
// "phN", "pN" token). A label that is a lone numeral also counts.
func phaseFromTokens(toks []string) (Phase, bool) {
	if len(toks) == 1 {
		if p, ok := phaseNumeral(toks[0]); ok {
			return p, true
		}
	}
	var found []Phase
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok == "phase" || tok == "phases" {
			for i+1 < len(toks) {
				next := toks[i+1]
				if p, ok := phaseNumeral(next); ok {
					found = append(found, p)
				} else if next != "and" && next != "to" && next != "or" {
					break
				}
				i++
			}
			continue
		}
		for _, prefix := range []string{"phase", "ph", "p"} {
			if rest, ok := strings.CutPrefix(tok, prefix); ok && rest != "" {
				if p, ok := phaseNumeral(rest); ok {
					found = append(found, p)
				}
				break
			}
		}
	}
	if len(found) == 0 {
		return "", false
	}
	best := found[0]
	ranks := DefaultPhaseRanks()
	for _, p := range found[1:] {
		best = ranks.MoreAdvanced(best, p)
	}
	return best, true
}

// phaseNumeral maps "1".."4" and "i".."iv", with an optional a/b/c
// sub-phase suffix ("1b", "iia").
func phaseNumeral(tok string) (Phase, bool) {
	switch tok {
	case "1", "i":
		return Phase1, true
	case "2", "ii":
		return Phase2, true
	case "3", "iii":
		return Phase3, true
	case "4", "iv":
		return PhaseApproved, true
	}
	if n := len(tok); n > 1 && strings.ContainsAny(tok[n-1:], "abc") {
		switch tok[:n-1] {
		case "1", "i", "2", "ii", "3", "iii":
			return phaseNumeral(tok[:n-1])
		}
	}
	return "", false
}

// labelTokens lowercases s and splits it on anything that is not a letter
// or digit.
func labelTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasToken(toks []string, words ...string) bool {
	for _, t := range toks {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}

// DevelopmentStatus is the lifecycle state of an entity.
type DevelopmentStatus string

const (
	StatusActive       DevelopmentStatus = "active"
	StatusDiscontinued DevelopmentStatus = "discontinued"
	StatusFailed       DevelopmentStatus = "failed"
	StatusOnHold       DevelopmentStatus = "on_hold"
)

// Terminal reports whether s is one of the sticky non-active states.
func (s DevelopmentStatus) Terminal() bool {
	return s == StatusDiscontinued || s == StatusFailed || s == StatusOnHold
}

// statusStems maps word prefixes in upstream status labels onto a
// DevelopmentStatus.
var statusStems = []struct {
	stem   string
	status DevelopmentStatus
}{
	{"discontinu", StatusDiscontinued},
	{"terminat", StatusDiscontinued},
	{"withdr", StatusDiscontinued},
	{"abandon", StatusDiscontinued},
	{"inactive", StatusDiscontinued},
	{"stopped", StatusDiscontinued},
	{"halted", StatusDiscontinued},
	{"ceased", StatusDiscontinued},
	{"fail", StatusFailed},
	{"onhold", StatusOnHold},
	{"hold", StatusOnHold},
	{"suspend", StatusOnHold},
	{"pause", StatusOnHold},
	{"active", StatusActive},
	{"ongoing", StatusActive},
	{"recruit", StatusActive},
	{"enrol", StatusActive},
	{"develop", StatusActive},
	{"complet", StatusActive},
	{"planned", StatusActive},
	{"approv", StatusActive},
	{"market", StatusActive},
	{"launch", StatusActive},
}

// LookupDevelopmentStatus maps an upstream status label onto a
// DevelopmentStatus by its first recognised word, so "Discontinued
// (safety)" and "Terminated due to lack of efficacy" both read as
// discontinued. ok is false when no word is recognised; the status is then
// active.
func LookupDevelopmentStatus(s string) (DevelopmentStatus, bool) {
	for _, tok := range labelTokens(s) {
		for _, st := range statusStems {
			if strings.HasPrefix(tok, st.stem) {
				return st.status, true
			}
		}
	}
	return StatusActive, false
}

// ParseDevelopmentStatus is LookupDevelopmentStatus without the
// recognition flag. Unknown labels are treated as active.
func ParseDevelopmentStatus(s string) DevelopmentStatus {
	st, _ := LookupDevelopmentStatus(s)
	return st
}

// StatusDetail explains a non-active status. Date is ISO-8601 and may be
// partial ("2023", "2023-05", "2023-05-17").
type StatusDetail struct {
	Date   string `json:"date,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CandidateEntity is one sighting of a tracked entity from one upstream
// batch.
type CandidateEntity struct {
	Name         string            `json:"name"`
	AliasCode    string            `json:"alias_code,omitempty"`
	Phase        Phase             `json:"phase"`
	Status       DevelopmentStatus `json:"status"`
	StatusDetail *StatusDetail     `json:"status_detail,omitempty"`
	Attributes   map[string]any    `json:"attributes,omitempty"`
	SourceRefs   []string          `json:"source_refs,omitempty"`
	Origin       string            `json:"origin,omitempty"`

	// StatusOverride marks a curated source allowed to move a terminal
	// status back to active.
	StatusOverride bool `json:"status_override,omitempty"`
}

// ApprovalStatus is an entity's classification within one context.
type ApprovalStatus string

const (
	ApprovalApproved        ApprovalStatus = "approved"
	ApprovalInvestigational ApprovalStatus = "investigational"
	ApprovalDiscontinued    ApprovalStatus = "discontinued"
	ApprovalFailed          ApprovalStatus = "failed"
	ApprovalOnHold          ApprovalStatus = "on_hold"
)

// ContextualStatus is the per-context view of an entity.
type ContextualStatus struct {
	Status ApprovalStatus `json:"status"`
	Phase  Phase          `json:"phase"`
}

// MergedEntity is the canonical record for one identity key.
type MergedEntity struct {
	IdentityKey         string                      `json:"identity_key"`
	Name                string                      `json:"name"`
	AliasCode           string                      `json:"alias_code,omitempty"`
	Phase               Phase                       `json:"phase"`
	HighestPhaseReached Phase                       `json:"highest_phase_reached"`
	Status              DevelopmentStatus           `json:"status"`
	StatusDetail        *StatusDetail               `json:"status_detail,omitempty"`
	StatusOverride      bool                        `json:"status_override,omitempty"`
	Attributes          map[string]any              `json:"attributes,omitempty"`
	MergedSourceRefs    []string                    `json:"merged_source_refs"`
	NameVariants        []string                    `json:"name_variants,omitempty"`
	Origins             []string                    `json:"origins,omitempty"`
	ContextualStatus    map[string]ContextualStatus `json:"contextual_status,omitempty"`
}

// Clone returns a deep copy of e. Attribute lists and nested objects are
// copied; other attribute values are assumed immutable.
func (e MergedEntity) Clone() MergedEntity {
	out := e
	if e.StatusDetail != nil {
		d := *e.StatusDetail
		out.StatusDetail = &d
	}
	if e.Attributes != nil {
		out.Attributes = cloneValue(e.Attributes).(map[string]any)
	}
	out.MergedSourceRefs = append([]string(nil), e.MergedSourceRefs...)
	out.NameVariants = append([]string(nil), e.NameVariants...)
	out.Origins = append([]string(nil), e.Origins...)
	if e.ContextualStatus != nil {
		out.ContextualStatus = make(map[string]ContextualStatus, len(e.ContextualStatus))
		for k, v := range e.ContextualStatus {
			out.ContextualStatus[k] = v
		}
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// SortedUnion merges string sets, dropping blanks and duplicates. The
// result is sorted and nil when empty.
func SortedUnion(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, s := range set {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			seen[s] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
