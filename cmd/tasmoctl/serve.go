package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northlane/tasmoctl/device"
	"github.com/northlane/tasmoctl/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local debug HTTP server exposing live log config and the device event stream",
	Long: `serve starts a manager with no devices registered and exposes two
debug endpoints useful while wiring up automations: GET/PUT /api/log reads
and changes the live logging configuration, and GET /api/events upgrades
to a websocket streaming every device lifecycle and state-change event.
This command adds no devices to that manager, so the event stream carries
no device events; it controls no devices either.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8742", "debug server listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The service starts from the same flag/config-file/env layering as the
	// rest of the CLI; PUT /api/log changes it live from there.
	logSvc, err := logging.NewService(logging.FromViper(viper.GetViper()))
	if err != nil {
		return err
	}

	mgr := device.NewManager(nil)

	mux := http.NewServeMux()
	mux.Handle("/api/log", logSvc)
	mux.HandleFunc("/api/events", mgr.ServeEvents)

	server := &http.Server{Addr: serveAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
