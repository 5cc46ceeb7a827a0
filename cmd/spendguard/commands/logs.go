package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/audit"
)

func newLogsCmd() *cobra.Command {
	var status, document, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the audit trail",
		Example: `  spendguard logs
  spendguard logs --status rejected
  spendguard logs --document receipt-1
  spendguard logs --since 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := audit.NewStore(cfg.AuditDB, quietLogger())
			if err != nil {
				return fmt.Errorf("opening audit db: %w", err)
			}
			defer store.Close() //nolint:errcheck // best-effort cleanup

			var sinceTime string
			if since != "" {
				dur, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", since, err)
				}
				sinceTime = time.Now().Add(-dur).UTC().Format(time.RFC3339)
			}

			entries, err := store.Query(audit.QueryOpts{
				Status:      status,
				DocumentRef: document,
				Since:       sinceTime,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No audit entries found.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tRECORDED\tDOCUMENT\tSTATUS\tREASONS\tPOLICY\n") //nolint:errcheck // CLI output
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // CLI output
					e.EntryID, e.RecordedAt, e.DocumentRef, e.Status,
					reasonSummary(e), e.PolicyVersion)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (approved, rejected, flagged)")
	cmd.Flags().StringVar(&document, "document", "", "filter by document reference")
	cmd.Flags().StringVar(&since, "since", "", "show entries since duration (e.g. 1h, 30m)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func reasonSummary(e audit.Entry) string {
	if len(e.Reasons) == 0 {
		return "-"
	}
	codes := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		codes = append(codes, string(r.Code))
	}
	return strings.Join(codes, ",")
}
