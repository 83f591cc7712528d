package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heapql/internal/oql"
	"github.com/heapql/pkg/model"
)

var (
	// Query command flags
	snapshotKey  string
	resultLimit  int
	queryFile    string
	catalogID    string
	outputFormat string
	exportResult bool
)

var queryCmd = &cobra.Command{
	Use:   "query [oql]",
	Short: "Run an OQL query against a heap dump",
	Long: `Run an OQL query against a heap dump and print one row per result.

The query is taken from the arguments, from a file (--file) or from the
built-in catalog (--catalog). Rows beyond --limit are dropped and a
warning is logged. Press Ctrl+C to cancel a long running query.`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	binName := BinName()
	queryCmd.Example = `  ` + binName + ` query -s app.hprof "select s from java.lang.String s where length(s) > 100"
  ` + binName + ` query -s app.hprof -f leaks.oql -o json
  ` + binName + ` query -s app.hprof --catalog duplicate-strings --export`

	addSnapshotFlag(queryCmd)
	queryCmd.Flags().IntVarP(&resultLimit, "limit", "n", 0, "Maximum number of rows (default engine.result_limit)")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	queryCmd.Flags().StringVar(&catalogID, "catalog", "", "Run a predefined query by ID (see 'queries catalog')")
	queryCmd.Flags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, html or json")
	queryCmd.Flags().BoolVar(&exportResult, "export", false, "Store the result as compressed JSON in the dump storage")
}

func addSnapshotFlag(c *cobra.Command) {
	c.Flags().StringVarP(&snapshotKey, "snapshot", "s", "", "Heap dump key in the configured storage (required)")
	c.MarkFlagRequired("snapshot")
}

func queryText(args []string) (string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, queryFile != "", catalogID != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return "", errors.New("give exactly one of a query argument, --file or --catalog")
	}
	switch {
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	case catalogID != "":
		q, ok := oql.FindCatalogQuery(catalogID)
		if !ok {
			return "", fmt.Errorf("unknown catalog query: %s", catalogID)
		}
		return q.Query, nil
	}
	return strings.Join(args, " "), nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	query, err := queryText(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Execute(ctx, &model.QueryRequest{Snapshot: snapshotKey, Query: query, Limit: resultLimit})
	if err != nil {
		return err
	}
	logger.Debug("Run %s delivered %d rows in %d ms", res.RunID, len(res.Rows), res.ElapsedMs)
	if err := printResult(cmd.OutOrStdout(), res, outputFormat); err != nil {
		return err
	}
	if exportResult {
		key, err := svc.ExportResult(ctx, res)
		if err != nil {
			return err
		}
		logger.Info("Result exported to %s", svc.Storage().URL(key))
	}
	return nil
}
