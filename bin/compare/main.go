package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"snapshot-baseline/internal/compare"
	"snapshot-baseline/internal/config"
	"snapshot-baseline/internal/verdict"
	"syscall"
)

const (
	exitPassed      = 0
	exitFailed      = 1
	exitEngineError = 2
)

type options struct {
	policy   string
	manifest string
	debug    bool
	storage  config.StorageConfig
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: compare [flags] <baseline> <actual> <diff>\n       compare [flags] -manifest <file>\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.policy, "policy", config.EnvOrDefaultValue("POLICY", "percent:0"), "Pass/fail policy (pixel:<count> or percent:<fraction>)")
	fs.StringVar(&o.manifest, "manifest", config.EnvOrDefaultValue("MANIFEST", ""), "JSON file with a list of comparisons to run in one invocation")
	fs.BoolVar(&o.debug, "debug", config.EnvOrDefaultValue("DEBUG", false), "Human readable logs")
	o.storage.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return exitEngineError
	}

	logger, err := config.NewLogger(stderr, o.debug)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitEngineError
	}

	policy, err := verdict.ParsePolicy(o.policy)
	if err != nil {
		logger.Error("invalid policy", "error", err)
		return exitEngineError
	}

	s, err := o.storage.Open(ctx)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return exitEngineError
	}

	comparator, err := compare.NewComparator(s, config.Logr(logger).WithName("compare"))
	if err != nil {
		logger.Error("failed to create comparator", "error", err)
		return exitEngineError
	}

	if o.manifest != "" {
		if fs.NArg() != 0 {
			fs.Usage()
			return exitEngineError
		}
		return runManifest(ctx, comparator, o.manifest, policy, stdout, logger)
	}

	if fs.NArg() != 3 {
		fs.Usage()
		return exitEngineError
	}

	result, err := comparator.CompareOrCreateBaseline(ctx, compare.Request{
		BaselinePath: fs.Arg(0),
		ActualPath:   fs.Arg(1),
		DiffPath:     fs.Arg(2),
		Policy:       policy,
	})
	if err != nil {
		logger.Error("comparison failed", "error", err, "reason", reason(err))
		return exitEngineError
	}

	if err := json.NewEncoder(stdout).Encode(result); err != nil {
		logger.Error("failed to encode result", "error", err)
		return exitEngineError
	}

	if !result.Passed {
		return exitFailed
	}
	return exitPassed
}

func reason(err error) string {
	var decodeErr *compare.DecodeError
	var ioErr *compare.IOError
	switch {
	case errors.Is(err, compare.ErrInvalidRequest):
		return "InvalidRequest"
	case errors.As(err, &decodeErr):
		return "DecodeError"
	case errors.As(err, &ioErr):
		return "IOError"
	default:
		return "Internal"
	}
}
