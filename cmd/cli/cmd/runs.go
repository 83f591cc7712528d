package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the query run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		runs, err := svc.ListRuns(ctx, snapshotKey, runsLimit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Snapshot,
				r.Status.String(),
				strconv.Itoa(r.Rows),
				r.Duration.String(),
				truncateString(r.Query, 60),
			})
		}
		printTable(cmd.OutOrStdout(), []string{"Started", "Snapshot", "Status", "Rows", "Duration", "Query"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVarP(&snapshotKey, "snapshot", "s", "", "Only show runs against this heap dump")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
