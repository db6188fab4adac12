// Package engine runs the consensus and entity pipeline for many
// independent targets under a bounded worker pool.
//
// Each target is computed end to end by one worker and emitted as a whole
// into its own result slot. No state crosses target boundaries, so a
// cancelled run never leaves a partially computed target behind.
package engine

import (
	"sort"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/merge"
	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/validate"
	"github.com/eletricells/vantdge/internal/verify"
)

// Target is one independent unit of work, such as one disease.
type Target struct {
	ID         string                  `json:"id" yaml:"id"`
	Estimates  []model.SourceEstimate  `json:"estimates,omitempty" yaml:"estimates"`
	Candidates []model.CandidateEntity `json:"candidates,omitempty" yaml:"candidates"`

	// Contexts are the context ids the verifier classifies entities in.
	Contexts []string `json:"contexts,omitempty" yaml:"contexts"`

	// Kinds restricts which value kinds get a consensus. Empty means every
	// kind present in Estimates.
	Kinds []model.ValueKind `json:"kinds,omitempty" yaml:"kinds"`
}

// TargetResult is the complete output for one target.
type TargetResult struct {
	TargetID  string                  `json:"target_id"`
	Consensus []model.ConsensusResult `json:"consensus,omitempty"`
	Entities  []model.MergedEntity    `json:"entities,omitempty"`
	Issues    []model.ValidationIssue `json:"issues,omitempty"`
	Skipped   bool                    `json:"skipped,omitempty"`
}

// Components bundles the configured pipeline stages. Build it once and
// share it; every stage is read-only after construction.
type Components struct {
	Consensus consensus.Config
	Resolver  *identity.Resolver
	Merger    *merge.Engine
	Verifier  *verify.Verifier
	Validator *validate.Validator
}

// DefaultComponents wires every stage with its default configuration over
// the given lookup tables.
func DefaultComponents(table identity.AliasTable, registry verify.Registry) Components {
	return Components{
		Consensus: consensus.DefaultConfig(),
		Resolver:  identity.NewResolver(table, identity.DefaultConfig()),
		Merger:    merge.NewEngine(merge.DefaultConfig()),
		Verifier:  verify.NewVerifier(registry, table),
		Validator: validate.New(validate.DefaultConfig()),
	}
}

// Process computes one target synchronously: consensus per kind, then
// identity resolution and merging, then per-context verification, then
// validation over the assembled output. It never fails; problems surface
// as issues.
func (c Components) Process(t Target) TargetResult {
	res := TargetResult{TargetID: t.ID}

	kinds := t.Kinds
	if len(kinds) == 0 {
		kinds = consensus.Kinds(t.Estimates)
	}
	kinds = sortedKinds(kinds)
	for _, k := range kinds {
		r, issues := consensus.Calculate(t.Estimates, k, c.Consensus)
		res.Consensus = append(res.Consensus, r)
		res.Issues = append(res.Issues, tagIssues(issues, t.ID)...)
	}

	if len(t.Candidates) > 0 && c.Merger != nil && c.Resolver != nil {
		entities, issues := c.Merger.All(t.Candidates, c.Resolver)
		res.Issues = append(res.Issues, tagIssues(issues, t.ID)...)
		if c.Verifier != nil && len(t.Contexts) > 0 {
			entities = c.Verifier.ApplyAll(entities, t.Contexts...)
		}
		res.Entities = entities
	}

	if c.Validator != nil {
		res.Issues = append(res.Issues, tagIssues(c.Validator.Validate(res.Consensus, res.Entities), t.ID)...)
	}
	return res
}

func sortedKinds(kinds []model.ValueKind) []model.ValueKind {
	seen := make(map[model.ValueKind]bool, len(kinds))
	out := make([]model.ValueKind, 0, len(kinds))
	for _, k := range kinds {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tagIssues prefixes issue subjects with the target id.
func tagIssues(issues []model.ValidationIssue, targetID string) []model.ValidationIssue {
	if targetID == "" {
		return issues
	}
	for i := range issues {
		if issues[i].Subject == "" {
			issues[i].Subject = targetID
		} else {
			issues[i].Subject = targetID + "/" + issues[i].Subject
		}
	}
	return issues
}
