package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/store"
	"github.com/spf13/cobra"
)

func newReportsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List stored end-of-call reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Reports.Store == "memory" {
				return errors.New("reports use the in-memory store; query GET /reports on the running server")
			}

			db, err := store.Open(paths.ReportsDB(cfg.Reports), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			reports := store.NewSQLiteReportStore(db)
			defer reports.Close()

			rows, err := reports.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, err := reports.Count(cmd.Context())
			if err != nil {
				return err
			}
			printReports(cmd.OutOrStdout(), rows, total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports to show (0 for all)")
	return cmd
}

func printReports(w io.Writer, reports []store.Report, total int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tAPP\tCALL\tREASON\tDURATION\tCOST")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0fs\t%.4f\n",
			r.ReceivedAt.Local().Format(time.DateTime), r.Application, r.CallID,
			r.EndedReason, r.DurationSeconds, r.Cost)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d of %d report(s)\n", len(reports), total)
}
