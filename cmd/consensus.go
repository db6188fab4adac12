package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/model"
)

var consensusKinds []string

var consensusCmd = &cobra.Command{
	Use:   "consensus <file>",
	Short: "Compute weighted consensus values for each target",
	Long:  "Reads targets from a YAML or JSON file (\"-\" for stdin) and prints one consensus result per value kind. Candidate records are ignored.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := parseKinds(consensusKinds)
		if err != nil {
			return err
		}
		comps, err := initComponents()
		if err != nil {
			return err
		}
		targets, issues, err := loadTargets(args[0])
		if err != nil {
			return err
		}
		return writeConsensus(os.Stdout, comps, targets, issues, kinds)
	},
}

func init() {
	consensusCmd.Flags().StringSliceVar(&consensusKinds, "kind", nil, "value kinds to compute (default: every kind present)")
	rootCmd.AddCommand(consensusCmd)
}

func parseKinds(raw []string) ([]model.ValueKind, error) {
	var kinds []model.ValueKind
	for _, s := range raw {
		k, ok := model.ParseValueKind(s)
		if !ok {
			return nil, eris.Errorf("unknown value kind %q", s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func writeConsensus(w io.Writer, comps engine.Components, targets []engine.Target, issues []model.ValidationIssue, kinds []model.ValueKind) error {
	results := make([]engine.TargetResult, 0, len(targets))
	for _, t := range targets {
		t.Candidates = nil
		if len(kinds) > 0 {
			t.Kinds = kinds
		}
		results = append(results, comps.Process(t))
	}
	return writeJSON(w, report{IngestIssues: issues, Results: results})
}
