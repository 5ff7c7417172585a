// Command dhcp4slaved runs the DHCPv4 slave server core: it loads a
// configuration file named on the command line, wires every
// subsystem together, and serves until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"

	"github.com/zdnscloud/zdhcp-sub001/internal/config"
	"github.com/zdnscloud/zdhcp-sub001/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() (code osutil.ExitCode) {
	ctx := context.Background()

	logger := slogutil.New(&slogutil.Config{
		Level:        slog.LevelInfo,
		Format:       slogutil.FormatDefault,
		AddTimestamp: true,
	})

	if len(os.Args) < 2 {
		logger.ErrorContext(ctx, "usage", "cmd", fmt.Sprintf("%s <config-path>", os.Args[0]))

		return osutil.ExitCodeArgumentError
	}

	conf, err := config.Load(os.Args[1])
	if err != nil {
		logger.ErrorContext(ctx, "loading configuration", slogutil.KeyError, err)

		return osutil.ExitCodeFailure
	}

	srv, err := server.New(conf, logger)
	if err != nil {
		logger.ErrorContext(ctx, "building server", slogutil.KeyError, err)

		return osutil.ExitCodeFailure
	}

	if err = srv.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "starting server", slogutil.KeyError, err)

		return osutil.ExitCodeFailure
	}

	logger.InfoContext(ctx, "started", "pid", os.Getpid())

	return waitForSignal(ctx, logger, srv)
}

// waitForSignal blocks until a shutdown signal arrives, then drives
// the server's graceful shutdown within shutdownTimeout.
func waitForSignal(ctx context.Context, logger *slog.Logger, srv *server.Server) (code osutil.ExitCode) {
	sigCh := make(chan os.Signal, 1)

	notifier := osutil.DefaultSignalNotifier{}
	osutil.NotifyShutdownSignal(notifier, sigCh)

	sig := <-sigCh
	logger.InfoContext(ctx, "received signal", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)

		srv.Shutdown()
	}()

	select {
	case <-done:
		logger.InfoContext(ctx, "stopped gracefully")

		return osutil.ExitCodeSuccess
	case <-shutdownCtx.Done():
		logger.ErrorContext(ctx, "shutdown timed out", slogutil.KeyError, errors.Error("shutdown deadline exceeded"))

		return osutil.ExitCodeFailure
	}
}
