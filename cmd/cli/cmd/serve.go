package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heapql/internal/webui"
)

var (
	// Serve command flags
	serveAddr  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web query console",
	Long: `Start an HTTP server with the query console and its JSON API.

The console lists the heap dumps in storage, runs queries, shows the
predefined and saved queries and lets you browse objects by following
the links in query results.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Start with the address from the config (server.host/server.port)
  ` + binName + ` serve

  # Listen on another address and expose /debug/pprof
  ` + binName + ` serve --addr 127.0.0.1:9090 --debug`

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.host:server.port)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Expose Go runtime profiles under /debug/pprof/")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr()
	}
	var opts []webui.Option
	if serveDebug {
		opts = append(opts, webui.WithDebugHandlers())
	}
	server, err := webui.NewServer(addr, svc, logger, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
