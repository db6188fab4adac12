// Package identity computes the key under which candidate entity
// sightings are grouped as the same real-world entity.
package identity

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/model"
)

// Method records which signal produced an identity key.
type Method string

const (
	MethodName           Method = "name"
	MethodAlias          Method = "alias"
	MethodIdentifier     Method = "identifier"
	MethodPeerIdentifier Method = "peer_identifier"
)

// Config lists the attribute keys holding external identifiers, in
// priority order.
type Config struct {
	IdentifierFields []string `yaml:"identifier_fields" mapstructure:"identifier_fields"`
}

// DefaultConfig returns the default identifier attribute keys.
func DefaultConfig() Config {
	return Config{IdentifierFields: []string{"cas_number", "unii", "chembl_id", "drugbank_id"}}
}

// Resolution is the outcome of resolving one candidate.
type Resolution struct {
	Key        string `json:"key"`
	NameKey    string `json:"name_key"`
	Recognized bool   `json:"recognized"`
	ExternalID string `json:"external_id,omitempty"`
	Method     Method `json:"method"`
}

// Resolver derives identity keys from names, alias codes and external
// identifiers.
type Resolver struct {
	table  AliasTable
	fields []string
}

// NewResolver creates a resolver over an immutable alias table.
func NewResolver(table AliasTable, cfg Config) *Resolver {
	return &Resolver{table: table, fields: append([]string(nil), cfg.IdentifierFields...)}
}

// Table returns the resolver's alias table.
func (r *Resolver) Table() AliasTable {
	return r.table
}

// NameKey resolves the candidate's name, falling back to its alias code.
func (r *Resolver) NameKey(c model.CandidateEntity) (string, bool) {
	if key, ok := r.table.Canonical(c.Name); ok {
		return key, true
	}
	if key, ok := r.table.Canonical(c.AliasCode); ok {
		return key, true
	}
	if key := Normalize(c.Name); key != "" {
		return key, false
	}
	return Normalize(c.AliasCode), false
}

// ExternalID returns the first configured identifier attribute present on
// the candidate.
func (r *Resolver) ExternalID(c model.CandidateEntity) string {
	for _, f := range r.fields {
		v, ok := c.Attributes[f]
		if !ok || v == nil {
			continue
		}
		if id := Normalize(cast.ToString(v)); id != "" {
			return id
		}
	}
	return ""
}

// Key resolves a single candidate. A known external identifier outranks an
// unrecognised name; when it disagrees with a recognised name the name
// wins and a warning is returned.
func (r *Resolver) Key(c model.CandidateEntity) (string, []model.ValidationIssue) {
	res, issues := r.resolveOne(c)
	return res.Key, issues
}

func (r *Resolver) resolveOne(c model.CandidateEntity) (Resolution, []model.ValidationIssue) {
	nameKey, recognized := r.NameKey(c)
	res := Resolution{
		Key:        nameKey,
		NameKey:    nameKey,
		Recognized: recognized,
		ExternalID: r.ExternalID(c),
		Method:     MethodName,
	}
	if recognized {
		res.Method = MethodAlias
	}
	if res.ExternalID == "" {
		return res, nil
	}

	idName, ok := r.table.Identifier(res.ExternalID)
	switch {
	case !ok:
		return res, nil
	case !recognized || nameKey == "":
		res.Key = idName
		res.Method = MethodIdentifier
		return res, nil
	case idName != nameKey:
		return res, []model.ValidationIssue{conflictIssue(nameKey, res.ExternalID, idName)}
	default:
		return res, nil
	}
}

// Resolve resolves a batch. Beyond Key, candidates that share an external
// identifier unknown to the alias table are unified under one key: the
// smallest recognised name key among them, else the smallest name key.
// Members whose recognised name disagrees keep their name key and produce
// a warning. The outcome does not depend on input order.
func (r *Resolver) Resolve(candidates []model.CandidateEntity) ([]Resolution, []model.ValidationIssue) {
	out := make([]Resolution, len(candidates))
	var issues []model.ValidationIssue

	peers := make(map[string][]int)
	for i, c := range candidates {
		res, is := r.resolveOne(c)
		out[i] = res
		issues = append(issues, is...)
		if res.ExternalID == "" {
			continue
		}
		if _, mapped := r.table.Identifier(res.ExternalID); mapped {
			continue
		}
		peers[res.ExternalID] = append(peers[res.ExternalID], i)
	}

	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		members := peers[id]
		if len(members) < 2 {
			continue
		}
		target := peerTarget(out, members)
		if target == "" {
			continue
		}
		for _, i := range members {
			switch {
			case out[i].Key == target:
			case out[i].Recognized:
				issues = append(issues, conflictIssue(out[i].NameKey, id, target))
			default:
				out[i].Key = target
				out[i].Method = MethodPeerIdentifier
			}
		}
	}

	return out, issues
}

func peerTarget(out []Resolution, members []int) string {
	var recognized, all []string
	for _, i := range members {
		if out[i].Key == "" {
			continue
		}
		all = append(all, out[i].Key)
		if out[i].Recognized {
			recognized = append(recognized, out[i].Key)
		}
	}
	pick := all
	if len(recognized) > 0 {
		pick = recognized
	}
	if len(pick) == 0 {
		return ""
	}
	sort.Strings(pick)
	return pick[0]
}

func conflictIssue(nameKey, externalID, idName string) model.ValidationIssue {
	zap.L().Warn("identity: name and identifier disagree, using name",
		zap.String("name_key", nameKey),
		zap.String("external_id", externalID),
		zap.String("identifier_name", idName),
	)
	return model.ValidationIssue{
		Severity: model.SeverityWarning,
		Rule:     "identity_conflict",
		Subject:  nameKey,
		Field:    "identity_key",
		Message:  fmt.Sprintf("name resolves to %q but identifier %q resolves to %q", nameKey, externalID, idName),
		Action:   "kept name-based key; review alias table",
	}
}
