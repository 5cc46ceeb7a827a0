package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/harness"
	"github.com/spendguard/spendguard/internal/policy"
)

func newTestCmd() *cobra.Command {
	var category string
	var testNumber, limit int
	var fixturesPath, endpoint, resultsDir string
	var delay, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the edge-case catalogue against the policy evaluator",
		Long: "Runs labeled edge-case documents through extraction and evaluation, " +
			"compares verdicts against expectations, and writes timestamped result " +
			"artifacts. Test failures are reported in the summary; the command " +
			"exits non-zero only when the run itself could not complete.",
		Example: `  spendguard test --fixtures fixtures.json
  spendguard test --category Limits
  spendguard test --test 7
  spendguard test --limit 5 --delay 0s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if endpoint != "" {
				cfg.Extractor.Endpoint = endpoint
			}
			if resultsDir != "" {
				cfg.Harness.ResultsDir = resultsDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			cases, err := harness.LoadCatalogue(cfg.Harness.Catalogue)
			if err != nil {
				return err
			}

			extractor, err := buildExtractor(cfg, fixturesPath)
			if err != nil {
				return err
			}

			logger := quietLogger()
			runner := harness.NewRunner(extractor, policy.NewEvaluator(cfg), logger)
			if cmd.Flags().Changed("delay") {
				runner.Delay = delay
			} else if fixturesPath != "" {
				// Fixtures need no rate limiting.
				runner.Delay = 0
			} else {
				runner.Delay = cfg.RateDelay()
			}
			if cmd.Flags().Changed("timeout") {
				runner.Timeout = timeout
			}

			filter := harness.Filter{
				TestNumber: testNumber,
				Category:   category,
				Limit:      limit,
			}

			selected := len(harness.Select(cases, filter))
			fmt.Printf("Running %d of %d test cases...\n\n", selected, len(cases))

			summary, err := runner.Run(cmd.Context(), cases, filter)
			if err != nil {
				return fmt.Errorf("run aborted: %w", err)
			}

			paths, err := harness.WriteArtifacts(cfg.Harness.ResultsDir, summary)
			if err != nil {
				return err
			}

			printRunSummary(summary)
			fmt.Printf("Results:  %s\n", paths.Results)
			fmt.Printf("Summary:  %s\n", paths.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "run only this catalogue category")
	cmd.Flags().IntVar(&testNumber, "test", 0, "run a single test by number")
	cmd.Flags().IntVar(&limit, "limit", 0, "run only the first N cases")
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "offline fixtures file instead of the live extractor")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "override extractor endpoint")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "pause between extraction calls")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-case extraction timeout")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "override results directory")
	return cmd
}

func printRunSummary(s *harness.Summary) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, res := range s.Results {
		switch {
		case res.Err != "":
			fmt.Printf("  %s  #%d [%s] %s\n", fail("ERR "), res.Case.TestNumber, res.Case.Category, res.Err)
		case res.Passed:
			fmt.Printf("  %s  #%d [%s]\n", pass("PASS"), res.Case.TestNumber, res.Case.Category)
		default:
			fmt.Printf("  %s  #%d [%s] expected %s, got %s\n",
				fail("FAIL"), res.Case.TestNumber, res.Case.Category,
				res.Case.Expected.Status, res.Actual.Status)
		}
	}

	fmt.Println()
	fmt.Println(harness.FormatSummary(s))
}
