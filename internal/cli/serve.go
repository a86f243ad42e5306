package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/api"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, when set, receives the bound address once the server listens.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the exploration API over HTTP",
		Long: `Serve one exploration session over HTTP until interrupted.

The API exposes query, search, lint, explain, schema and history endpoints
under /v1 with per-client rate limiting and CORS.

Examples:
  pmeql serve --db ./hub.db
  pmeql serve --db ./hub.db --addr 127.0.0.1:9090 -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config listen_addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	env, err := openEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	addr := env.cfg.ListenAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			env.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	handler := api.NewRouter(ctx, env.session, api.Config{
		CORSOrigins: env.cfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: env.cfg.RateLimit.RPS,
			Burst:             env.cfg.RateLimit.Burst,
		},
		Logger: env.logger,
	})
	srv := api.NewHTTPServer(addr, handler, env.cfg.Timeout())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	env.logger.Info("server listening", "addr", ln.Addr().String(), "session", env.session.ID())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", ln.Addr())
	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	env.logger.Info("server stopped gracefully")
	return nil
}
