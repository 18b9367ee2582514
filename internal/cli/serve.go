package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/vizgen/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Start the HTTP request surface:

  POST /generate            {"text": "..."}
  POST /generate_baseline   {"text": "..."}
  GET  /healthz
  GET  /runs, /runs/:id     (only with a history database)

Stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	addr := opts.Addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	var history server.History
	if a.store != nil {
		history = a.store
	}
	srv := server.New(a.coord, history, a.logger)
	if err := srv.Serve(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server stopped", zap.Error(err))
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
