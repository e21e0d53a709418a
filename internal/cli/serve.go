package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"table-scraper/internal/results"
	"table-scraper/internal/web"
)

var (
	serveAddr    string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP front end",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8787", "listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "runs", "directory for stored runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := results.NewStore(serveDataDir)
	if err != nil {
		return err
	}
	broker := web.NewBroker()
	srvLogger := logger.WithOptions(zap.Hooks(broker.ZapHook()))
	server := web.NewServer(srvLogger, store, broker, web.DefaultRunner(srvLogger))

	httpServer := &http.Server{
		Addr:              serveAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		srvLogger.Info("listening", zap.String("addr", serveAddr), zap.String("data_dir", store.Dir()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srvLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
