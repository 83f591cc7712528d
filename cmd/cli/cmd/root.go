// Package cmd implements the heapql command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heapql/internal/service"
	"github.com/heapql/pkg/config"
	"github.com/heapql/pkg/telemetry"
	"github.com/heapql/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   utils.Logger
	shutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heapql",
	Short: "Query Java heap dumps with OQL",
	Long: `heapql loads HPROF heap dumps and answers Object Query Language queries
against them, from the command line or from a small web console.

Dumps are read from the configured storage (a local directory or a COS
bucket). Saved queries and the run history live in the configured database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		// Results go to stdout, so logs default to stderr.
		out := cfg.Log.OutputPath
		if out == "" {
			out = "stderr"
		}
		logger, err = utils.NewLogger(cfg.Log.Level, out)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		utils.SetGlobalLogger(logger)

		shutdown, err = telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Tracing disabled: %v", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown != nil {
			if err := shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Warn("Failed to flush traces: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./config.yaml, ./configs or /etc/heapql)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Run a query against a dump
  ` + binName + ` query -s app.hprof "select s from java.lang.String s where length(s) > 100"

  # Show the class histogram of application classes
  ` + binName + ` classes -s app.hprof --category application

  # Start the web console
  ` + binName + ` serve --addr :8080`
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// openService creates and initializes the query service. Callers close it.
func openService(ctx context.Context) (*service.Service, error) {
	svc, err := service.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}
