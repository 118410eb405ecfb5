package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/store"
)

var (
	reconcileDocID string
	reconcileFile  string
	reconcileNoDB  bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile one resume document",
	Long:  "Reads the document text from --file or stdin, runs every configured provider, and prints the reconciled record as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("reconcile"); err != nil {
			return err
		}
		ctx := cmd.Context()

		sourceText, err := readSource(reconcileFile)
		if err != nil {
			return err
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		var st store.Store
		if !reconcileNoDB {
			s, err := initStore(ctx)
			if err != nil {
				return eris.Wrap(err, "init store")
			}
			defer s.Close()
			if err := s.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			st = s
		}

		runner := buildRunner(registry, st)

		result, err := runner.Run(ctx, reconcileDocID, sourceText)
		if err != nil {
			return eris.Wrap(err, "reconcile run")
		}

		zap.L().Info("reconciliation finished",
			zap.String("document_id", reconcileDocID),
			zap.Bool("success", result.Success),
			zap.Bool("quality_gate_passed", result.QualityGatePassed),
			zap.Float64("overall_confidence", result.OverallConfidence),
			zap.Float64("cost_usd", result.TotalCostUSD))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileDocID, "document-id", "", "document identifier (required)")
	reconcileCmd.Flags().StringVarP(&reconcileFile, "file", "f", "", "path to document text (default stdin)")
	reconcileCmd.Flags().BoolVar(&reconcileNoDB, "no-store", false, "skip run persistence")
	_ = reconcileCmd.MarkFlagRequired("document-id")
	rootCmd.AddCommand(reconcileCmd)
}
