package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/config"
	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/ingest"
	"github.com/eletricells/vantdge/internal/model"
)

var (
	cfg        *config.Config
	tablesPath string
)

var rootCmd = &cobra.Command{
	Use:   "vantdge",
	Short: "Evidence consensus and entity resolution engine",
	Long:  "Reconciles conflicting numeric estimates into weighted consensus values and merges candidate entity records into canonical entities with per-context status.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if tablesPath != "" {
			cfg.Tables.Path = tablesPath
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tablesPath, "tables", "", "lookup tables file (overrides tables.path)")
}

// report is the JSON document every processing command writes.
type report struct {
	IngestIssues []model.ValidationIssue `json:"ingest_issues,omitempty"`
	Results      any                     `json:"results"`
}

// initComponents validates the engine settings and wires the pipeline.
func initComponents() (engine.Components, error) {
	if err := cfg.Validate("engine"); err != nil {
		return engine.Components{}, err
	}
	tables, err := config.LoadTables(cfg.Tables.Path)
	if err != nil {
		return engine.Components{}, err
	}
	return cfg.Components(tables), nil
}

// loadTargets reads the input file and logs a summary of boundary issues.
func loadTargets(path string) ([]engine.Target, []model.ValidationIssue, error) {
	targets, issues, err := ingest.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(issues) > 0 {
		counts := model.CountBySeverity(issues)
		zap.L().Warn("ingest: records with problems",
			zap.Int("errors", counts[model.SeverityError]),
			zap.Int("warnings", counts[model.SeverityWarning]),
			zap.Int("info", counts[model.SeverityInfo]),
		)
	}
	return targets, issues, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
