package merge

import (
	"strings"
	"time"

	"github.com/eletricells/vantdge/internal/model"
)

// claim is the status-bearing part of an entity: what it says about its
// lifecycle and at which phase it says so.
type claim struct {
	status   model.DevelopmentStatus
	detail   *model.StatusDetail
	phase    model.Phase
	override bool
}

func claimOf(e model.MergedEntity) claim {
	return claim{status: e.Status, detail: e.StatusDetail, phase: e.Phase, override: e.StatusOverride}
}

var severity = map[model.DevelopmentStatus]int{
	model.StatusFailed:       3,
	model.StatusDiscontinued: 2,
	model.StatusOnHold:       1,
}

// outranks compares two claims and returns >0 when a wins, <0 when b wins
// and 0 when neither is preferred. The ordering is total over claim
// content, which keeps merges independent of argument order:
//
//   - an override source beats a non-override source
//   - a terminal status beats active
//   - between terminals: later date, then a dated detail, then a detail
//     with a reason, then severity, then reason text, then the more
//     advanced phase
func (m *Engine) outranks(a, b claim) int {
	if a.override != b.override {
		if a.override {
			return 1
		}
		return -1
	}
	at, bt := a.status.Terminal(), b.status.Terminal()
	if at != bt {
		if at {
			return 1
		}
		return -1
	}
	if !at {
		return 0
	}

	ad, bd := detailOf(a), detailOf(b)
	if c := compareDates(ad.Date, bd.Date); c != 0 {
		return c
	}
	if (ad.Reason != "") != (bd.Reason != "") {
		if ad.Reason != "" {
			return 1
		}
		return -1
	}
	if sa, sb := severity[a.status], severity[b.status]; sa != sb {
		if sa > sb {
			return 1
		}
		return -1
	}
	if ad.Reason != bd.Reason {
		if ad.Reason < bd.Reason {
			return 1
		}
		return -1
	}
	if ad.Date != bd.Date {
		if ad.Date < bd.Date {
			return 1
		}
		return -1
	}
	if a.phase != b.phase {
		if m.ranks.MoreAdvanced(a.phase, b.phase) == a.phase {
			return 1
		}
		return -1
	}
	return 0
}

func detailOf(c claim) model.StatusDetail {
	if c.detail == nil {
		return model.StatusDetail{}
	}
	return model.StatusDetail{Date: strings.TrimSpace(c.detail.Date), Reason: strings.TrimSpace(c.detail.Reason)}
}

type dateKey struct {
	t         time.Time
	precision int
}

var dateLayouts = []struct {
	layout    string
	precision int
}{
	{"2006-01-02", 3},
	{"2006/01/02", 3},
	{"January 2, 2006", 3},
	{"Jan 2, 2006", 3},
	{"2006-01", 2},
	{"2006/01", 2},
	{"January 2006", 2},
	{"Jan 2006", 2},
	{"2006", 1},
}

// parseDate accepts full or partial dates. Missing components sort as the
// start of the period.
func parseDate(s string) (dateKey, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return dateKey{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return dateKey{t: t.UTC(), precision: 4}, true
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return dateKey{t: t, precision: l.precision}, true
		}
	}
	return dateKey{}, false
}

// compareDates prefers the later date, then the more precise one. A
// parseable date beats a missing or unparseable one.
func compareDates(a, b string) int {
	ka, okA := parseDate(a)
	kb, okB := parseDate(b)
	switch {
	case okA && !okB:
		return 1
	case !okA && okB:
		return -1
	case !okA && !okB:
		return 0
	}
	if ka.t.After(kb.t) {
		return 1
	}
	if kb.t.After(ka.t) {
		return -1
	}
	switch {
	case ka.precision > kb.precision:
		return 1
	case kb.precision > ka.precision:
		return -1
	}
	return 0
}
