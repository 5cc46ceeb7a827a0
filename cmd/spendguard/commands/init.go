package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/config"
)

// starterCatalogue seeds edge_cases.json with one case per verdict path so
// `spendguard test --fixtures fixtures.json` works out of the box.
const starterCatalogue = `[
  {
    "test_number": 1,
    "category": "Approvals",
    "image_ref": "receipt-clean",
    "description": "legible in-policy meal",
    "expected_verdict": {"status": "approved"}
  },
  {
    "test_number": 2,
    "category": "Limits",
    "image_ref": "receipt-over-limit",
    "description": "lodging moderately over the nightly cap",
    "expected_verdict": {"status": "flagged", "reason_codes": ["over_limit"]}
  },
  {
    "test_number": 3,
    "category": "Prohibited",
    "image_ref": "receipt-alcohol",
    "description": "bar tab",
    "expected_verdict": {"status": "rejected", "reason_codes": ["prohibited_category"]}
  },
  {
    "test_number": 4,
    "category": "Legibility",
    "image_ref": "receipt-blurry",
    "description": "unreadable foreign-language scan",
    "expected_verdict": {"status": "rejected", "reason_codes": ["illegible", "unsupported_language"]}
  }
]
`

const starterFixtures = `{
  "receipt-clean": {
    "vendor_name": "Corner Bistro",
    "total_amount": 42.5,
    "currency": "USD",
    "expense_category": "meals",
    "date": "2025-03-14",
    "language_detected": "en",
    "legibility_score": 0.95
  },
  "receipt-over-limit": {
    "vendor_name": "Grand Plaza Hotel",
    "total_amount": 500,
    "currency": "USD",
    "expense_category": "lodging",
    "date": "2025-03-14",
    "language_detected": "en",
    "legibility_score": 0.9
  },
  "receipt-alcohol": {
    "vendor_name": "Night Owl Bar",
    "total_amount": 60,
    "currency": "USD",
    "expense_category": "alcohol",
    "date": "2025-03-14",
    "language_detected": "en",
    "legibility_score": 0.9
  },
  "receipt-blurry": {
    "vendor_name": "Unbekannt",
    "total_amount": 30,
    "currency": "EUR",
    "expense_category": "meals",
    "date": "2025-03-14",
    "language_detected": "de",
    "legibility_score": 0.2
  }
}
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config, edge-case catalogue, and fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := map[string]func() error{
				cfgFile:           func() error { return config.Defaults().Save(cfgFile) },
				"edge_cases.json": func() error { return os.WriteFile("edge_cases.json", []byte(starterCatalogue), 0o644) },
				"fixtures.json":   func() error { return os.WriteFile("fixtures.json", []byte(starterFixtures), 0o644) },
			}

			for _, name := range []string{cfgFile, "edge_cases.json", "fixtures.json"} {
				if _, err := os.Stat(name); err == nil && !force {
					fmt.Printf("  skip  %s (exists, use --force to overwrite)\n", name)
					continue
				}
				if err := files[name](); err != nil {
					return err
				}
				fmt.Printf("  wrote %s\n", name)
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  spendguard test --fixtures fixtures.json")
			fmt.Println("  spendguard serve")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}
