package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/advisor-guard/internal/application"
	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
)

var (
	statsDays  int
	statsDaily bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print audit pass rate, confidence and top mismatched fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, dialect, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := audit.NewService(sqlrepo.NewAuditRepository(conn, dialect), application.SystemClock{}.Now)
		if statsDaily {
			list, err := svc.Daily(cmd.Context(), statsDays)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		}

		st, err := svc.Stats(cmd.Context(), statsDays)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			*audit.Stats
			GeneratedAt time.Time `json:"generated_at"`
		}{st, time.Now().UTC()})
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", audit.DefaultDays, "window in days")
	statsCmd.Flags().BoolVar(&statsDaily, "daily", false, "print per-day buckets instead of the summary")
	rootCmd.AddCommand(statsCmd)
}
