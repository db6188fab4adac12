package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eletricells/vantdge/internal/consensus"
	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/merge"
	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/store"
	"github.com/eletricells/vantdge/internal/validate"
	"github.com/eletricells/vantdge/internal/weight"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
	Tables     TablesConfig    `yaml:"tables" mapstructure:"tables"`
	Engine     engine.Config   `yaml:"engine" mapstructure:"engine"`
	Weight     weight.Config   `yaml:"weight" mapstructure:"weight"`
	Consensus  ConsensusConfig `yaml:"consensus" mapstructure:"consensus"`
	Identity   identity.Config `yaml:"identity" mapstructure:"identity"`
	Merge      merge.Config    `yaml:"merge" mapstructure:"merge"`
	Verify     VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Validation validate.Config `yaml:"validate" mapstructure:"validate"`
}

// StoreConfig configures the run audit log backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Retry       store.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TablesConfig points at the lookup tables file.
type TablesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ConsensusConfig configures the consensus calculator. Weighting lives
// under the top-level weight key.
type ConsensusConfig struct {
	Thresholds  consensus.Thresholds                 `yaml:"thresholds" mapstructure:"thresholds"`
	Domains     map[model.ValueKind]consensus.Bounds `yaml:"domains" mapstructure:"domains"`
	WeightScale float64                              `yaml:"weight_scale" mapstructure:"weight_scale"`
}

// VerifyConfig configures the context verifier.
type VerifyConfig struct {
	FallbackPhase model.Phase `yaml:"fallback_phase" mapstructure:"fallback_phase"`
}

// ConsensusSettings assembles the consensus calculator config.
func (c *Config) ConsensusSettings() consensus.Config {
	return consensus.Config{
		Weight:      c.Weight,
		Thresholds:  c.Consensus.Thresholds,
		Domains:     c.Consensus.Domains,
		WeightScale: c.Consensus.WeightScale,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VANTDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vantdge.db")
	r := store.DefaultRetryConfig()
	v.SetDefault("store.retry.max_attempts", r.MaxAttempts)
	v.SetDefault("store.retry.initial_backoff", r.InitialBackoff)
	v.SetDefault("store.retry.max_backoff", r.MaxBackoff)
	v.SetDefault("store.retry.jitter_fraction", r.JitterFraction)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tables.path", "")
	v.SetDefault("engine.concurrency", engine.DefaultConcurrency)
	v.SetDefault("engine.targets_per_second", 0)

	w := weight.DefaultConfig()
	tiers := make(map[string]any, len(w.TierWeights))
	for k, f := range w.TierWeights {
		tiers[string(k)] = f
	}
	v.SetDefault("weight.tier_weights", tiers)
	v.SetDefault("weight.recency_cutoff_year", w.RecencyCutoffYear)
	v.SetDefault("weight.recency_multiplier", w.RecencyMultiplier)
	thresholds := make([]map[string]any, len(w.SampleSizeThresholds))
	for i, th := range w.SampleSizeThresholds {
		thresholds[i] = map[string]any{"above": th.Above, "multiplier": th.Multiplier}
	}
	v.SetDefault("weight.sample_size_thresholds", thresholds)

	c := consensus.DefaultConfig()
	v.SetDefault("consensus.thresholds.high_min_tier1", c.Thresholds.HighMinTier1)
	v.SetDefault("consensus.thresholds.high_max_cv", c.Thresholds.HighMaxCV)
	v.SetDefault("consensus.thresholds.medium_min_tier1", c.Thresholds.MediumMinTier1)
	v.SetDefault("consensus.thresholds.medium_max_cv", c.Thresholds.MediumMaxCV)
	v.SetDefault("consensus.weight_scale", c.WeightScale)
	v.SetDefault("consensus.domains", domainDefaults(c.Domains))

	v.SetDefault("identity.identifier_fields", identity.DefaultConfig().IdentifierFields)

	m := merge.DefaultConfig()
	ranks := make(map[string]any, len(m.PhaseRanks))
	for p, r := range m.PhaseRanks {
		ranks[string(p)] = r
	}
	v.SetDefault("merge.phase_ranks", ranks)
	v.SetDefault("merge.list_attributes", m.ListAttributes)

	v.SetDefault("verify.fallback_phase", string(model.Phase3))

	val := validate.DefaultConfig()
	v.SetDefault("validate.domains", domainDefaults(val.Domains))
	v.SetDefault("validate.spread_ratio", val.SpreadRatio)
	v.SetDefault("validate.round_number", val.RoundNumber)
	v.SetDefault("validate.failure_rate_max_range", val.FailureRateMaxRange)
	v.SetDefault("validate.treatment_rate_floor", val.TreatmentRateFloor)
	v.SetDefault("validate.phase_ranks", ranks)
}

func domainDefaults(domains map[model.ValueKind]consensus.Bounds) map[string]any {
	out := make(map[string]any, len(domains))
	for k, b := range domains {
		m := map[string]any{}
		if b.Min != nil {
			m["min"] = *b.Min
		}
		if b.Max != nil {
			m["max"] = *b.Max
		}
		out[string(k)] = m
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
