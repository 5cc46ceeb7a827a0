package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/harness"
	"github.com/spendguard/spendguard/internal/insights"
)

func newInsightsCmd() *cobra.Command {
	var run string
	var threshold float64
	var save bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Analyze a harness run for weak spots and recommendations",
		Example: `  spendguard insights
  spendguard insights --run test_results/test_results_20250314_093000.json
  spendguard insights --threshold 0.9 --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path := run
			if path == "" || path == "latest" {
				path, err = harness.LatestResults(cfg.Harness.ResultsDir)
				if err != nil {
					return fmt.Errorf("no harness runs found: %w", err)
				}
			}

			summary, err := harness.LoadSummary(path)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Harness.PassRateThreshold
			}

			report := insights.Analyze(summary, threshold)
			fmt.Print(report.Format())

			if save {
				out, err := insights.WriteReport(cfg.Harness.ResultsDir, report)
				if err != nil {
					return err
				}
				fmt.Printf("\nSaved: %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&run, "run", "latest", "results file to analyze, or 'latest'")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.8, "pass-rate threshold below which a category needs attention")
	cmd.Flags().BoolVar(&save, "save", false, "write the report next to the run artifacts")
	return cmd
}
