// Package validate scans finished consensus and merge output for
// implausible or structurally invalid values. Every rule is independent,
// reports non-fatal issues and never panics on malformed input.
package validate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/model"
)

// Config holds the rule thresholds.
type Config struct {
	Domains map[model.ValueKind]consensus.Bounds `yaml:"domains" mapstructure:"domains"`

	// SpreadRatio is the max/min ratio above which estimates are flagged
	// as widely spread.
	SpreadRatio float64 `yaml:"spread_ratio" mapstructure:"spread_ratio"`

	// RoundNumber flags estimate sets where every value is a multiple.
	RoundNumber float64 `yaml:"round_number" mapstructure:"round_number"`

	FailureRateMaxRange float64 `yaml:"failure_rate_max_range" mapstructure:"failure_rate_max_range"`
	TreatmentRateFloor  float64 `yaml:"treatment_rate_floor" mapstructure:"treatment_rate_floor"`

	PhaseRanks model.PhaseRanks `yaml:"phase_ranks" mapstructure:"phase_ranks"`
}

func (c Config) ranks() model.PhaseRanks {
	if len(c.PhaseRanks) == 0 {
		return model.DefaultPhaseRanks()
	}
	return c.PhaseRanks
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Domains:             consensus.DefaultDomains(),
		SpreadRatio:         10,
		RoundNumber:         10000,
		FailureRateMaxRange: 50,
		TreatmentRateFloor:  20,
		PhaseRanks:          model.DefaultPhaseRanks(),
	}
}

// ConsensusRule checks one consensus result.
type ConsensusRule struct {
	Name  string
	Check func(cfg Config, r model.ConsensusResult) []model.ValidationIssue
}

// EntityRule checks one merged entity.
type EntityRule struct {
	Name  string
	Check func(cfg Config, e model.MergedEntity) []model.ValidationIssue
}

// Validator runs a fixed rule set.
type Validator struct {
	cfg            Config
	consensusRules []ConsensusRule
	entityRules    []EntityRule
}

// Option configures a Validator.
type Option func(*Validator)

// WithConsensusRules replaces the consensus rule set.
func WithConsensusRules(rules ...ConsensusRule) Option {
	return func(v *Validator) { v.consensusRules = rules }
}

// WithEntityRules replaces the entity rule set.
func WithEntityRules(rules ...EntityRule) Option {
	return func(v *Validator) { v.entityRules = rules }
}

// New creates a Validator with the default rules.
func New(cfg Config, opts ...Option) *Validator {
	v := &Validator{
		cfg:            cfg,
		consensusRules: DefaultConsensusRules(),
		entityRules:    DefaultEntityRules(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate runs every rule over every result and entity. Issues are
// returned in rule order per input, inputs in the order given.
func (v *Validator) Validate(results []model.ConsensusResult, entities []model.MergedEntity) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for _, r := range results {
		for _, rule := range v.consensusRules {
			issues = append(issues, guard(rule.Name, string(r.Kind), func() []model.ValidationIssue {
				return rule.Check(v.cfg, r)
			})...)
		}
	}
	for _, e := range entities {
		for _, rule := range v.entityRules {
			issues = append(issues, guard(rule.Name, e.IdentityKey, func() []model.ValidationIssue {
				return rule.Check(v.cfg, e)
			})...)
		}
	}

	if len(issues) > 0 {
		counts := model.CountBySeverity(issues)
		zap.L().Debug("validate: issues found",
			zap.Int("errors", counts[model.SeverityError]),
			zap.Int("warnings", counts[model.SeverityWarning]),
			zap.Int("info", counts[model.SeverityInfo]),
		)
	}
	return issues
}

// guard turns a panicking rule into an error issue.
func guard(rule, subject string, fn func() []model.ValidationIssue) (out []model.ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("validate: rule panicked",
				zap.String("rule", rule),
				zap.String("subject", subject),
				zap.Any("panic", r),
			)
			out = []model.ValidationIssue{{
				Severity: model.SeverityError,
				Rule:     rule,
				Subject:  subject,
				Message:  fmt.Sprintf("rule failed on malformed input: %v", r),
				Action:   "rule skipped",
			}}
		}
	}()
	return fn()
}
