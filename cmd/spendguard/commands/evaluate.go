package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/audit"
	"github.com/spendguard/spendguard/internal/config"
	"github.com/spendguard/spendguard/internal/expense"
	"github.com/spendguard/spendguard/internal/extract"
	"github.com/spendguard/spendguard/internal/metrics"
	"github.com/spendguard/spendguard/internal/policy"
	"github.com/spendguard/spendguard/internal/review"
)

func newEvaluateCmd() *cobra.Command {
	var fieldsPath, imageRef, fixturesPath, endpoint, documentRef string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one expense document and record the verdict",
		Example: `  spendguard evaluate --fields receipt.json
  spendguard evaluate --image receipt-1 --fixtures fixtures.json
  spendguard evaluate --image receipts/r1.jpg --endpoint http://localhost:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (fieldsPath == "") == (imageRef == "") {
				return fmt.Errorf("exactly one of --fields or --image is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if endpoint != "" {
				cfg.Extractor.Endpoint = endpoint
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := quietLogger()

			store, err := audit.NewStore(cfg.AuditDB, logger)
			if err != nil {
				return fmt.Errorf("opening audit db: %w", err)
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			extractor, err := buildExtractor(cfg, fixturesPath)
			if err != nil {
				return err
			}

			reviewer := review.NewReviewer(extractor, policy.NewEvaluator(cfg), store, metrics.NewCollector(nil), logger)

			var verdict policy.Verdict
			var entry audit.Entry
			if fieldsPath != "" {
				data, err := os.ReadFile(fieldsPath)
				if err != nil {
					return fmt.Errorf("reading fields: %w", err)
				}
				var fields expense.ExtractedFields
				if err := json.Unmarshal(data, &fields); err != nil {
					return fmt.Errorf("parsing fields: %w", err)
				}
				verdict, entry, err = reviewer.SubmitFields(cmd.Context(), documentRef, fields)
				if err != nil {
					return err
				}
			} else {
				verdict, entry, err = reviewer.SubmitImage(cmd.Context(), imageRef)
				if err != nil {
					return err
				}
			}

			printVerdict(verdict, entry)
			return nil
		},
	}

	cmd.Flags().StringVar(&fieldsPath, "fields", "", "JSON file with extracted fields")
	cmd.Flags().StringVar(&imageRef, "image", "", "document reference to extract and evaluate")
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "offline fixtures file instead of the live extractor")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "override extractor endpoint")
	cmd.Flags().StringVar(&documentRef, "document", "", "document reference for the audit entry")
	return cmd
}

// buildExtractor picks fixtures when a file is given, the HTTP client
// otherwise.
func buildExtractor(cfg *config.Config, fixturesPath string) (extract.Extractor, error) {
	if fixturesPath != "" {
		fixtures, err := extract.LoadFixtures(fixturesPath)
		if err != nil {
			return nil, err
		}
		return fixtures, nil
	}
	if cfg.Extractor.Endpoint == "" {
		return nil, fmt.Errorf("no extractor endpoint configured; pass --fixtures for offline use")
	}
	return extract.NewClient(cfg.Extractor.Endpoint, cfg.ExtractTimeout()), nil
}

func printVerdict(verdict policy.Verdict, entry audit.Entry) {
	statusText := map[policy.Status]*color.Color{
		policy.StatusApproved: color.New(color.FgGreen, color.Bold),
		policy.StatusFlagged:  color.New(color.FgYellow, color.Bold),
		policy.StatusRejected: color.New(color.FgRed, color.Bold),
	}

	fmt.Println()
	if c, ok := statusText[verdict.Status]; ok {
		c.Printf("  %s\n", verdict.Status)
	} else {
		fmt.Printf("  %s\n", verdict.Status)
	}
	for _, r := range verdict.Reasons {
		fmt.Printf("    [%s] %s: %s\n", r.Severity, r.Code, r.Detail)
	}
	fmt.Println()
	fmt.Printf("  Document:  %s\n", entry.DocumentRef)
	fmt.Printf("  Entry:     #%d\n", entry.EntryID)
	fmt.Printf("  Policy:    %s\n", verdict.PolicyVersion)
	fmt.Println()
}
