package config

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/merge"
	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/store"
	"github.com/eletricells/vantdge/internal/validate"
	"github.com/eletricells/vantdge/internal/verify"
)

// Tables holds the lookup tables: name aliases, external identifiers and
// per-context approvals. Loaded once at start and read-only afterwards.
type Tables struct {
	// Aliases maps a raw name or development code to its canonical name.
	Aliases map[string]string `yaml:"aliases"`

	// Identifiers maps an external identifier to its canonical name.
	Identifiers map[string]string `yaml:"identifiers"`

	// Approvals maps a context id to the canonical names approved there.
	Approvals map[string][]string `yaml:"approvals"`
}

// LoadTables reads lookup tables from a YAML file. An empty path yields
// empty tables.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return &Tables{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read tables %s", path)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "config: parse tables %s", path)
	}

	zap.L().Debug("config: tables loaded",
		zap.String("path", path),
		zap.Int("aliases", len(t.Aliases)),
		zap.Int("identifiers", len(t.Identifiers)),
		zap.Int("contexts", len(t.Approvals)),
	)
	return &t, nil
}

// AliasTable builds the identity alias table.
func (t *Tables) AliasTable() identity.AliasTable {
	return identity.NewAliasTable(t.Aliases, t.Identifiers)
}

// Registry builds the approval registry.
func (t *Tables) Registry() verify.Registry {
	return verify.NewRegistry(t.Approvals)
}

// Components wires every pipeline stage from the configuration and
// lookup tables.
func (c *Config) Components(t *Tables) engine.Components {
	if t == nil {
		t = &Tables{}
	}
	table := t.AliasTable()
	return engine.Components{
		Consensus: c.ConsensusSettings(),
		Resolver:  identity.NewResolver(table, c.Identity),
		Merger:    merge.NewEngine(c.Merge),
		Verifier:  verify.NewVerifier(t.Registry(), table, verify.WithFallbackPhase(c.Verify.FallbackPhase)),
		Validator: validate.New(c.Validation),
	}
}

// DefaultConfig returns a Config populated with the same defaults Load
// applies, without reading any file or environment.
func DefaultConfig() *Config {
	c := consensus.DefaultConfig()
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "vantdge.db", Retry: store.DefaultRetryConfig()},
		Log:    LogConfig{Level: "info", Format: "json"},
		Engine: engine.Config{Concurrency: engine.DefaultConcurrency},
		Weight: c.Weight,
		Consensus: ConsensusConfig{
			Thresholds:  c.Thresholds,
			Domains:     c.Domains,
			WeightScale: c.WeightScale,
		},
		Identity:   identity.DefaultConfig(),
		Merge:      merge.DefaultConfig(),
		Verify:     VerifyConfig{FallbackPhase: model.Phase3},
		Validation: validate.DefaultConfig(),
	}
}
