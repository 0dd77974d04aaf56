package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	acceptor "github.com/scriptbridge/acceptor"
	"github.com/scriptbridge/acceptor/flags"
	"github.com/scriptbridge/acceptor/service"
)

var (
	Version   = "v0.2.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "script-acceptor"
	app.Usage = "Cross-Runtime Script Acceptance Tester"
	app.Description = "script-acceptor builds module artifacts and runs script test cases against them"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if acceptor.IsRuntimeError(err) {
				// For runtime errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if acceptor.IsTestFailureError(err) {
				// For test failures, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger := setupLogger(cliCtx.String(flags.LogLevel.Name))

	cfg, err := acceptor.NewConfig(cliCtx, logger)
	if err != nil {
		return acceptor.NewRuntimeError(fmt.Errorf("failed to build config: %w", err))
	}

	// Healthz and metrics servers
	svc := service.New(service.Config{Log: logger})
	svc.Start()
	defer svc.Shutdown()

	runCtx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	app, err := acceptor.New(runCtx, cfg, Version, func(error) { cancel() })
	if err != nil {
		return acceptor.NewRuntimeError(fmt.Errorf("failed to create acceptor: %w", err))
	}

	if err := app.Start(runCtx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: block until interrupted, then stop cleanly.
	<-runCtx.Done()
	return app.Stop(context.Background())
}

func setupLogger(level string) log.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = log.LevelDebug
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	default:
		lvl = log.LevelInfo
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true))
	log.SetDefault(logger)
	return logger
}
