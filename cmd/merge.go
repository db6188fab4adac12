package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/model"
)

var mergeContexts []string

var mergeCmd = &cobra.Command{
	Use:   "merge <file>",
	Short: "Resolve and merge candidate entities for each target",
	Long:  "Reads targets from a YAML or JSON file (\"-\" for stdin), groups candidates by canonical identity, merges each group and verifies status per context. Estimates are ignored.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := initComponents()
		if err != nil {
			return err
		}
		targets, issues, err := loadTargets(args[0])
		if err != nil {
			return err
		}
		return writeMerge(os.Stdout, comps, targets, issues, mergeContexts)
	},
}

func init() {
	mergeCmd.Flags().StringSliceVar(&mergeContexts, "context", nil, "extra contexts to verify every target against")
	rootCmd.AddCommand(mergeCmd)
}

func writeMerge(w io.Writer, comps engine.Components, targets []engine.Target, issues []model.ValidationIssue, contexts []string) error {
	results := make([]engine.TargetResult, 0, len(targets))
	for _, t := range targets {
		t.Estimates = nil
		t.Kinds = nil
		if len(contexts) > 0 {
			t.Contexts = append(append([]string(nil), t.Contexts...), contexts...)
		}
		results = append(results, comps.Process(t))
	}
	return writeJSON(w, report{IngestIssues: issues, Results: results})
}
