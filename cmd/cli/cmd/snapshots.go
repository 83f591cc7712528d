package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List heap dumps in the configured storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		infos, err := svc.ListSnapshots(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{info.Key, humanize.IBytes(uint64(info.Size))})
		}
		printTable(cmd.OutOrStdout(), []string{"Snapshot", "Size"}, rows)
		return nil
	},
}

var snapshotInfoCmd = &cobra.Command{
	Use:   "info <snapshot>",
	Short: "Load a heap dump and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		info, err := svc.LoadSnapshot(ctx, args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Snapshot:  %s\n", info.Key)
		fmt.Fprintf(w, "Classes:   %s\n", humanize.Comma(int64(info.Classes)))
		fmt.Fprintf(w, "Instances: %s\n", humanize.Comma(int64(info.Instances)))
		fmt.Fprintf(w, "GC roots:  %s\n", strconv.Itoa(info.Roots))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotInfoCmd)
}
