// Package verify classifies a merged entity's approval status within one
// context, such as a single disease, as opposed to its global status.
package verify

import (
	"sort"

	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/model"
)

// Registry maps a context id to the canonical names approved in that
// context. Build it with NewRegistry; it is read-only afterwards.
type Registry struct {
	approved map[string]map[string]struct{}
}

// NewRegistry normalises context ids and names. Context ids are matched
// case-insensitively.
func NewRegistry(entries map[string][]string) Registry {
	r := Registry{approved: make(map[string]map[string]struct{}, len(entries))}
	for ctx, names := range entries {
		k := identity.Normalize(ctx)
		if k == "" {
			continue
		}
		set, ok := r.approved[k]
		if !ok {
			set = make(map[string]struct{}, len(names))
			r.approved[k] = set
		}
		for _, n := range names {
			if n = identity.Normalize(n); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return r
}

// Approved reports whether canonical name key is approved in ctx.
func (r Registry) Approved(ctx, key string) bool {
	set, ok := r.approved[identity.Normalize(ctx)]
	if !ok {
		return false
	}
	_, ok = set[key]
	return ok
}

// Canonical returns a copy of r in which every name the alias table knows
// is also listed under its canonical name, so a registry written with
// brand names matches entities keyed by generic name.
func (r Registry) Canonical(table identity.AliasTable) Registry {
	out := Registry{approved: make(map[string]map[string]struct{}, len(r.approved))}
	for ctx, names := range r.approved {
		set := make(map[string]struct{}, len(names))
		for n := range names {
			set[n] = struct{}{}
			if k, ok := table.Canonical(n); ok {
				set[k] = struct{}{}
			}
		}
		out.approved[ctx] = set
	}
	return out
}

// Contexts returns the registry's normalised context ids, sorted.
func (r Registry) Contexts() []string {
	out := make([]string, 0, len(r.approved))
	for k := range r.approved {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of contexts in the registry.
func (r Registry) Len() int {
	return len(r.approved)
}

// Verifier produces per-context views of merged entities.
type Verifier struct {
	registry Registry
	table    identity.AliasTable
	fallback model.Phase
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFallbackPhase sets the phase reported for an entity approved
// elsewhere when no earlier view of the context records a phase. The
// default is Phase3.
func WithFallbackPhase(p model.Phase) Option {
	return func(v *Verifier) {
		if p != "" {
			v.fallback = p
		}
	}
}

// NewVerifier creates a verifier over an approval registry and alias
// table. Registry names are resolved through the table.
func NewVerifier(registry Registry, table identity.AliasTable, opts ...Option) *Verifier {
	v := &Verifier{registry: registry.Canonical(table), table: table, fallback: model.Phase3}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify classifies e within contextID.
//
// A registry hit for any of the entity's names yields approved. An entity
// approved globally but not here is investigational, at the phase an
// earlier view of this context recorded or else at the fallback phase.
// Otherwise the development status is mirrored.
func (v *Verifier) Verify(e model.MergedEntity, contextID string) model.ContextualStatus {
	if v.approvedIn(e, contextID) {
		return model.ContextualStatus{Status: model.ApprovalApproved, Phase: model.PhaseApproved}
	}

	if e.Phase == model.PhaseApproved && !e.Status.Terminal() {
		zap.L().Debug("verify: approved elsewhere, downgrading",
			zap.String("entity", e.IdentityKey),
			zap.String("context", contextID),
		)
		return model.ContextualStatus{Status: model.ApprovalInvestigational, Phase: v.fallbackPhase(e, contextID)}
	}

	phase := e.Phase
	if phase == "" {
		phase = model.PhaseUnknown
	}
	switch e.Status {
	case model.StatusDiscontinued:
		return model.ContextualStatus{Status: model.ApprovalDiscontinued, Phase: phase}
	case model.StatusFailed:
		return model.ContextualStatus{Status: model.ApprovalFailed, Phase: phase}
	case model.StatusOnHold:
		return model.ContextualStatus{Status: model.ApprovalOnHold, Phase: phase}
	default:
		return model.ContextualStatus{Status: model.ApprovalInvestigational, Phase: phase}
	}
}

// Apply returns a copy of e with ContextualStatus filled for each context
// id. e itself is not modified.
func (v *Verifier) Apply(e model.MergedEntity, contextIDs ...string) model.MergedEntity {
	out := e.Clone()
	if len(contextIDs) == 0 {
		return out
	}
	if out.ContextualStatus == nil {
		out.ContextualStatus = make(map[string]model.ContextualStatus, len(contextIDs))
	}
	for _, ctx := range contextIDs {
		out.ContextualStatus[ctx] = v.Verify(e, ctx)
	}
	return out
}

// ApplyAll runs Apply over a slice of entities.
func (v *Verifier) ApplyAll(entities []model.MergedEntity, contextIDs ...string) []model.MergedEntity {
	if len(entities) == 0 {
		return nil
	}
	out := make([]model.MergedEntity, len(entities))
	for i, e := range entities {
		out[i] = v.Apply(e, contextIDs...)
	}
	return out
}

func (v *Verifier) approvedIn(e model.MergedEntity, ctx string) bool {
	for _, key := range v.keys(e) {
		if v.registry.Approved(ctx, key) {
			return true
		}
	}
	return false
}

// keys lists the canonical keys an entity can be found under: its
// identity key and the canonical form of each recorded name.
func (v *Verifier) keys(e model.MergedEntity) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	add(e.IdentityKey)
	for _, raw := range append([]string{e.Name, e.AliasCode}, e.NameVariants...) {
		k, _ := v.table.Canonical(raw)
		add(k)
	}
	return out
}

func (v *Verifier) fallbackPhase(e model.MergedEntity, ctx string) model.Phase {
	prev, ok := e.ContextualStatus[ctx]
	if !ok {
		return v.fallback
	}
	switch prev.Phase {
	case "", model.PhaseApproved, model.PhaseUnknown:
		return v.fallback
	default:
		return prev.Phase
	}
}
