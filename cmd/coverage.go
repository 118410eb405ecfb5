package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/potensiadev/reconciler/internal/coverage"
)

var (
	coverageRecordFile string
	coverageSourceFile string
)

// coverageInput accepts either a bare record document or a full
// reconciliation result, since both carry the same field names.
type coverageInput struct {
	Record        map[string]any     `json:"record"`
	ConfidenceMap map[string]float64 `json:"confidence_map"`
	EvidenceMap   map[string]string  `json:"evidence_map"`
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Compute a coverage report offline",
	Long:  "Scores an already-extracted record against its source document without any provider calls. Useful for re-grading stored results after threshold changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("coverage"); err != nil {
			return err
		}

		sourceText, err := readSource(coverageSourceFile)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(coverageRecordFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", coverageRecordFile)
		}
		var input coverageInput
		if err := json.Unmarshal(data, &input); err != nil {
			return eris.Wrap(err, "parse record JSON")
		}
		if input.Record == nil {
			return eris.New("record JSON has no \"record\" object")
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		report := coverage.NewCalculator(registry).Calculate(
			input.Record, input.ConfidenceMap, input.EvidenceMap, sourceText)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	coverageCmd.Flags().StringVar(&coverageRecordFile, "record", "", "path to record JSON (required)")
	coverageCmd.Flags().StringVarP(&coverageSourceFile, "file", "f", "", "path to document text (default stdin)")
	_ = coverageCmd.MarkFlagRequired("record")
	rootCmd.AddCommand(coverageCmd)
}
