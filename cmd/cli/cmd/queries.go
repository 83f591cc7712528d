package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heapql/internal/oql"
	"github.com/heapql/pkg/model"
)

var (
	queryTag        string
	saveText        string
	saveDescription string
	saveTags        []string
	saveUpdate      bool
	importOverwrite bool
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage the saved query library",
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		queries, err := svc.ListQueries(ctx, queryTag)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(queries))
		for _, q := range queries {
			rows = append(rows, []string{q.Name, strings.Join(q.Tags, ","), q.Description})
		}
		printTable(cmd.OutOrStdout(), []string{"Name", "Tags", "Description"}, rows)
		return nil
	},
}

var queriesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		q, err := svc.GetQuery(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), q.Query)
		return nil
	},
}

var queriesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save a query under a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := saveText
		if queryFile != "" {
			data, err := os.ReadFile(queryFile)
			if err != nil {
				return fmt.Errorf("failed to read query file: %w", err)
			}
			text = string(data)
		}
		if text == "" {
			return errors.New("give the query with --query or --file")
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		q := &model.SavedQuery{Name: args[0], Query: text, Description: saveDescription, Tags: saveTags}
		if saveUpdate {
			err = svc.UpdateQuery(ctx, q)
		} else {
			err = svc.SaveQuery(ctx, q)
		}
		if err != nil {
			return err
		}
		logger.Info("Saved query %s", q.Name)
		return nil
	},
}

var queriesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.DeleteQuery(ctx, args[0])
	},
}

var queriesRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a saved query against a heap dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.RunSavedQuery(ctx, args[0], snapshotKey, resultLimit)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res, outputFormat)
	},
}

var queriesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import queries from a YAML file ('-' reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := svc.ImportQueries(ctx, r, importOverwrite)
		if err != nil {
			return err
		}
		logger.Info("Imported queries: %d created, %d updated, %d skipped", report.Created, report.Updated, report.Skipped)
		return nil
	},
}

var queriesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the query library as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.ExportQueries(ctx, w)
	},
}

var queriesCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the predefined queries",
	// The catalog is built in; no config or storage is needed.
	PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
	PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		var rows [][]string
		for _, c := range oql.Catalog() {
			for _, q := range c.Queries {
				rows = append(rows, []string{q.ID, c.Name, q.Description})
			}
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "Category", "Description"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd, queriesShowCmd, queriesSaveCmd, queriesDeleteCmd,
		queriesRunCmd, queriesImportCmd, queriesExportCmd, queriesCatalogCmd)

	queriesListCmd.Flags().StringVarP(&queryTag, "tag", "t", "", "Only list queries with this tag")

	queriesSaveCmd.Flags().StringVarP(&saveText, "query", "q", "", "Query text")
	queriesSaveCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	queriesSaveCmd.Flags().StringVarP(&saveDescription, "description", "d", "", "Description")
	queriesSaveCmd.Flags().StringSliceVarP(&saveTags, "tag", "t", nil, "Tags (repeatable)")
	queriesSaveCmd.Flags().BoolVar(&saveUpdate, "update", false, "Replace an existing query of the same name")

	addSnapshotFlag(queriesRunCmd)
	queriesRunCmd.Flags().IntVarP(&resultLimit, "limit", "n", 0, "Maximum number of rows (default engine.result_limit)")
	queriesRunCmd.Flags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, html or json")

	queriesImportCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Update queries that already exist")
}
