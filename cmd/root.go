package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Multi-provider resume extraction reconciler",
	Long:  "Scatters resume extraction across LLM providers, reconciles the answers by weighted consensus, verifies evidence against the source document, and gates the result on quality.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
