package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/quantmind-br/qpm/internal/cmd"
	"github.com/quantmind-br/qpm/internal/config"
	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/logging"
	"github.com/quantmind-br/qpm/internal/paths"
	"github.com/quantmind-br/qpm/internal/selfupdate"
	"github.com/quantmind-br/qpm/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exe, err := paths.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitGeneral
	}

	cfg, err := config.Load(filepath.Dir(exe))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return core.ExitGeneral
	}

	resolver, err := paths.NewResolver(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitGeneral
	}

	// the bootstrap replaces the install root, so it must not hold a log
	// file inside it
	logFile := resolver.LogFile()
	if len(os.Args) > 1 && os.Args[1] == selfupdate.BootstrapCommand {
		logFile = ""
	}

	ui.ConfigureColors(cfg.Logging.Color)
	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: logFile,
		Color:   cfg.Logging.Color,
	})

	rootCmd := cmd.NewRootCmd(&cmd.Deps{
		Config:  cfg,
		Paths:   resolver,
		Log:     log,
		Version: version,
	})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted")
			return core.ExitInterrupted
		}
		var exitErr *cmd.ExitError
		if !errors.As(err, &exitErr) {
			// usage and unclassified errors are not printed by the commands
			ui.NewPrinter(os.Stdout, os.Stderr).Error("%v", err)
		}
		log.Debug().Err(err).Msg("command failed")
		return cmd.ExitCode(err)
	}
	return core.ExitSuccess
}
