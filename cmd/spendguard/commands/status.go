package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/audit"
	"github.com/spendguard/spendguard/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show policy summary and audit trail counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			fmt.Println()
			fmt.Println("  spendguard status")
			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Policy:        %s\n", cfg.PolicyVersion())
			fmt.Printf("  Categories:    %d limits, %d prohibited\n",
				len(cfg.Policy.Limits), len(cfg.Policy.ProhibitedCategories))
			fmt.Printf("  Languages:     %s\n", strings.Join(cfg.Policy.AllowedLanguages, ", "))
			fmt.Printf("  Legibility:    >= %.2f\n", cfg.Policy.MinLegibility)
			fmt.Printf("  Config:        %s\n", cfgFile)

			store, err := audit.NewStore(cfg.AuditDB, quietLogger())
			if err == nil {
				defer func() { _ = store.Close() }()

				counts, err := store.StatusCounts()
				if err == nil {
					total := 0
					statuses := make([]string, 0, len(counts))
					for s, n := range counts {
						total += n
						statuses = append(statuses, s)
					}
					sort.Strings(statuses)

					fmt.Println("  ────────────────────────────────────────")
					fmt.Printf("  Audit entries: %d\n", total)
					for _, s := range statuses {
						fmt.Printf("    %-12s %d\n", s+":", counts[s])
					}
				}
			}

			fmt.Println()
			return nil
		},
	}
}
