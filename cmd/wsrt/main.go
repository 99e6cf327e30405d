package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/wsrt/pkg/ws"
)

const defaultPort = 1338

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:           "wsrt",
		Short:         "WebSocket server runtime",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port < 0 || port > 65535 {
				return fmt.Errorf("invalid port %d", port)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, port, logger)
		},
	}

	cmd.PersistentFlags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")

	return cmd
}

func run(ctx context.Context, port int, logger *slog.Logger) error {
	cfg := ws.DefaultServerConfig()
	cfg.Logger = logger

	server := ws.NewServer(cfg)

	server.Subscribe(ws.Handlers{
		Message: func(c *ws.Channel, msg ws.Message) {
			logger.Debug("message", "channel", c.ID(), "type", msg.Type.String(), "size", len(msg.Data))
		},
		Error: func(c *ws.Channel, err error) {
			logger.Debug("channel error", "channel", c.ID(), "error", err)
		},
	})

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	logger.Info("server started", "port", ln.Addr().(*net.TCPAddr).Port, "pid", os.Getpid())

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Close(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	if err := <-errCh; !errors.Is(err, ws.ErrServerClosed) {
		return err
	}

	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("wsrt failed", "error", err)
		os.Exit(1)
	}
}
