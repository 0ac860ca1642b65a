package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskpad/backend/rest"
	"taskpad/internal/app"
	"taskpad/internal/config"
	"taskpad/internal/shutdown"
	"taskpad/internal/utils"
)

const stopTimeout = 5 * time.Second

func newServeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured item store as a REST API",
		Long: "Serve the configured item store over HTTP in the shape the rest backend expects.\n" +
			"Point another taskpad at it with backend.type: rest and backend.rest.base_url.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				if a.Config.Backend.Type == config.BackendREST {
					return utils.WrapWithSuggestion(
						utils.ErrValidation("serve needs a local backend"),
						"Set backend.type to memory or sqlite")
				}
				addr := a.Config.Server.Addr
				if cmd.Flags().Changed("addr") {
					addr, _ = cmd.Flags().GetString("addr")
				}
				return doServe(cmd.Context(), a, addr, stdout, cfg.OnServe)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("addr", config.DefaultServerAddr, "Listen address")
	return cmd
}

func doServe(ctx context.Context, a *app.App, addr string, stdout io.Writer, onServe func(string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	resource := a.Config.Backend.REST.Resource
	srv := &http.Server{
		Handler:           rest.NewHandler(a.Items, resource),
		ReadHeaderTimeout: 10 * time.Second,
	}

	coord := shutdown.New()
	unwatch := coord.Watch(os.Interrupt, syscall.SIGTERM)
	defer unwatch()
	coord.OnStop("http server", srv.Shutdown)

	go func() {
		select {
		case <-ctx.Done():
			coord.Stop("command cancelled")
		case <-coord.Done():
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	bound := ln.Addr().String()
	_, _ = fmt.Fprintf(stdout, "Serving %s on http://%s/%s\n", a.Config.Backend.Type, bound, resource)
	if onServe != nil {
		onServe(bound)
	}

	var runErr error
	select {
	case <-coord.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
		coord.Stop("server exited")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := coord.Finish(stopCtx); err != nil {
		return errors.Join(runErr, err)
	}
	_, _ = fmt.Fprintln(stdout, "Server stopped")
	return runErr
}
