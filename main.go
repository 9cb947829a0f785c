package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/profile"
	"golang.org/x/exp/slog"

	brc "brc/stats/core"
)

func usage(fset *flag.FlagSet, stderr io.Writer) func() {
	return func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <measurements-file>\n", fset.Name())
		fset.PrintDefaults()
	}
}

// run is main without the exit, 0 on success, 1 on failure, 2 on bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = usage(fset, stderr)
	defaults := brc.DefaultOptions()
	workers := fset.Int("workers", runtime.NumCPU(), "number of ranges scanned in parallel")
	chunk := fset.Int("chunk", defaults.ReadChunkFactor, "read size, in pages")
	strategy := fset.String("strategy", string(defaults.Strategy), "preload or lazy")
	reader := fset.String("reader", string(defaults.ReaderType), "disk or mmap")
	hash := fset.String("hash", string(defaults.Hash), "fnv, xxh3 or seeded (untrusted input)")
	skip := fset.Bool("skip-malformed", false, "skip and count malformed lines instead of failing")
	out := fset.String("out", "", "write the report to this file instead of stdout")
	verbose := fset.Bool("v", false, "debug logging and timings")
	prof := fset.String("profile", "", "cpu or mem, profile written to the current directory")
	if err := fset.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return 2
	}
	input := fset.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stderr, "File does not exist: %s\n", input)
		} else {
			fmt.Fprintf(stderr, "Cannot stat %s: %v\n", input, err)
		}
		return 1
	}

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		fmt.Fprintf(stderr, "unknown profile %q\n", *prof)
		return 2
	}

	logger.Debug("cpu",
		"brand", cpuid.CPU.BrandName,
		"physical_cores", cpuid.CPU.PhysicalCores,
		"logical_cores", cpuid.CPU.LogicalCores,
		"cache_line", cpuid.CPU.CacheLine)

	opts := brc.BrcOptions{
		ReadChunkFactor: *chunk,
		NThreads:        *workers,
		Strategy:        brc.BrcStrategyType(*strategy),
		ReaderType:      brc.BrcReaderType(*reader),
		Hash:            brc.BrcHashType(*hash),
		SkipMalformed:   *skip,
		Logger:          logger,
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	timeBefore := time.Now()
	res, err := brc.Solve(ctx, input, nil, opts)
	if err != nil {
		logger.Error("run failed", "file", input, "err", err)
		return 1
	}
	if *out != "" {
		err = brc.WriteReportFile(*out, res.Stations)
	} else {
		err = brc.WriteReport(stdout, res.Stations)
	}
	if err != nil {
		logger.Error("cannot write report", "err", err)
		return 1
	}
	logger.Debug("done",
		"keys", res.Stations.Len(), "lines", res.Lines, "skipped", res.Skipped,
		"elapsed", time.Since(timeBefore).String())
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
