package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heapql/pkg/model"
)

var (
	batchFile string
	batchJSON bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [oql...]",
	Short: "Run several queries concurrently against one heap dump",
	Long: `Run several queries concurrently against one heap dump. Queries come
from the arguments and from a YAML file in the format written by
'queries export'. A failing query does not stop the others.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	binName := BinName()
	batchCmd.Example = `  ` + binName + ` batch -s app.hprof "select heap.finalizables()" "select s from java.lang.String s"
  ` + binName + ` batch -s app.hprof -f queries.yaml --json`

	addSnapshotFlag(batchCmd)
	batchCmd.Flags().IntVarP(&resultLimit, "limit", "n", 0, "Maximum number of rows per query (default engine.result_limit)")
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "YAML file with the queries to run")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print the results as JSON")
}

func batchQueries(args []string) ([]string, error) {
	queries := append([]string(nil), args...)
	if batchFile != "" {
		data, err := os.ReadFile(batchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}
		var file struct {
			Queries []model.SavedQuery `yaml:"queries"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse batch file: %w", err)
		}
		for _, q := range file.Queries {
			queries = append(queries, q.Query)
		}
	}
	if len(queries) == 0 {
		return nil, errors.New("no queries given")
	}
	return queries, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	queries, err := batchQueries(args)
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

	results, err := svc.RunBatch(ctx, snapshotKey, queries, resultLimit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if batchJSON {
		return printJSON(w, results)
	}
	failed := 0
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s\n", r.Query)
		if r.Error != "" {
			failed++
			fmt.Fprintf(w, "error [%s]: %s\n", r.ErrorCode, r.Error)
			continue
		}
		if err := printResult(w, r.Result, formatText); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	return nil
}
