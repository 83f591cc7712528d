package cmd

import (
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heapql/internal/service"
)

var (
	classCategory string
	classTop      int
	classProfile  string
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Print the class histogram of a heap dump",
	Long: `Print instance counts and shallow sizes per class, largest first.

--category restricts the histogram to one class category: primitive,
jdk, framework, application or business. Business classes are the
ones matching engine.business_prefixes.

--pprof also writes the full histogram as a pprof profile, for example
to browse it with "go tool pprof -http=: classes.pb.gz".`,
	RunE: runClasses,
}

func init() {
	rootCmd.AddCommand(classesCmd)

	addSnapshotFlag(classesCmd)
	classesCmd.Flags().StringVar(&classCategory, "category", "", "Only show classes of this category")
	classesCmd.Flags().IntVarP(&classTop, "top", "n", 50, "Number of classes to show (0 for all)")
	classesCmd.Flags().StringVar(&classProfile, "pprof", "", "Also write the histogram as a pprof profile to this file")
}

func runClasses(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	entries, err := svc.ClassHistogram(ctx, snapshotKey, classCategory)
	if err != nil {
		return err
	}
	if classProfile != "" {
		if err := writeProfile(classProfile, service.HistogramProfile(snapshotKey, entries)); err != nil {
			return err
		}
		logger.Info("Histogram profile written to %s", classProfile)
	}
	if classTop > 0 && len(entries) > classTop {
		entries = entries[:classTop]
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ClassName,
			e.Category,
			strconv.Itoa(e.Instances),
			humanize.IBytes(uint64(e.ShallowBytes)),
		})
	}
	printTable(cmd.OutOrStdout(), []string{"Class", "Category", "Instances", "Shallow"}, rows)
	return nil
}

func writeProfile(path string, p interface{ Write(w io.Writer) error }) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
