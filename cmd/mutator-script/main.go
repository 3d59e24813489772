// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mutator/lib/clock"
	"github.com/bureau-foundation/mutator/lib/config"
	"github.com/bureau-foundation/mutator/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(arguments []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		configPath  string
		scriptPath  string
		logLevel    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("mutator-script", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $MUTATOR_CONFIG, else built-in defaults)")
	flagSet.StringVar(&scriptPath, "script", "", "read commands from this file instead of stdin")
	flagSet.StringVar(&logLevel, "log-level", "", "override log.level from the config (debug, info, warn, error)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if showVersion {
		version.Print(stdout, "mutator-script")
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}

	script := stdin
	if scriptPath != "" {
		file, err := os.Open(scriptPath)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer file.Close()
		script = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cfg, logger, clock.Real(), stdout)
	if err != nil {
		return err
	}
	runErr := s.run(ctx, script)
	closeErr := s.close(context.Background())
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// loadConfig uses --config, then $MUTATOR_CONFIG, then the defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv(config.EnvVar) != "":
		return config.Load()
	default:
		cfg := config.Default()
		cfg.ExpandVariables()
		return cfg, nil
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `mutator-script drives the mutation engine from a line-oriented script.

Each line is one command. Blank lines and lines starting with # are
ignored. JSON values may contain spaces when quoted or bracketed.

Commands:
  open NAME FILE          open (and lock) a JSON document under NAME
  activate NAME           include NAME in global undo
  deactivate NAME         exclude NAME from global undo
  set NAME PATH JSON      apply one undoable change
  slide NAME PATH JSON    debounced change; a burst becomes one undo step
  drag NAME PATH JSON...  begin, update with each value, apply
  undo [NAME]             undo NAME's latest change, or the latest
                          change among active documents
  show NAME               print the document
  stack NAME              print NAME's undo stack, oldest first
  history [N]             print the last N journal entries (default 10)
  settle                  wait out the debounce window

Usage:
  mutator-script [flags] < script

Flags:
%s`, flagSet.FlagUsages())
}
