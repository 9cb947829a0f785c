package brc

import (
	"context"
	"io"
	"runtime"
	"time"

	"golang.org/x/exp/slog"
)

type BrcStrategyType string

const (
	BrcStrategyPreRead  BrcStrategyType = "preload"
	BrcStrategyLazyRead BrcStrategyType = "lazy"
)

var BrcStrategyList = []BrcStrategyType{BrcStrategyPreRead, BrcStrategyLazyRead}

type BrcReaderType string

const (
	BrcReaderDisk BrcReaderType = "disk"
	BrcReaderMmap BrcReaderType = "mmap"
)

var BrcReaderList = []BrcReaderType{BrcReaderDisk, BrcReaderMmap}

type BrcHashType string

const (
	HashFNV    BrcHashType = "fnv"    // FNV-1a, trusted input only
	HashXXH3   BrcHashType = "xxh3"   // faster on long keys
	HashSeeded BrcHashType = "seeded" // xxh3 with a random seed per run
)

var BrcHashList = []BrcHashType{HashFNV, HashXXH3, HashSeeded}

type BrcOptions struct {
	ReadChunkFactor int             // factor of pagesize, size of read chunks
	NThreads        int             // number of ranges and workers
	Strategy        BrcStrategyType // load data upfront or lazyload
	ReaderType      BrcReaderType   // read on disk or mmap file
	Hash            BrcHashType     // hash of the per-key map
	SkipMalformed   bool            // skip and count bad lines instead of failing
	Logger          *slog.Logger    // nil is silent
}

func DefaultOptions() BrcOptions {
	return BrcOptions{
		ReadChunkFactor: 64,
		NThreads:        runtime.NumCPU(),
		Strategy:        BrcStrategyLazyRead,
		ReaderType:      BrcReaderDisk,
		Hash:            HashFNV,
	}
}

func (opts BrcOptions) Validate() error {
	if opts.ReadChunkFactor < 1 {
		return optionsError("chunk factor must be greater than 0, got %d", opts.ReadChunkFactor)
	}
	if opts.NThreads < 1 {
		return optionsError("n_threads must be greater than 0, got %d", opts.NThreads)
	}
	switch opts.Strategy {
	case BrcStrategyPreRead, BrcStrategyLazyRead, "":
	default:
		return optionsError("unknown strategy %q", opts.Strategy)
	}
	switch opts.ReaderType {
	case BrcReaderDisk, BrcReaderMmap, "":
	default:
		return optionsError("unknown reader %q", opts.ReaderType)
	}
	switch opts.Hash {
	case HashFNV, HashXXH3, HashSeeded, "":
	default:
		return optionsError("unknown hash %q", opts.Hash)
	}
	return nil
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (opts BrcOptions) logger() *slog.Logger {
	if opts.Logger == nil {
		return discardLogger
	}
	return opts.Logger
}

// Solve opens filename with the configured reader, aggregates it and, when
// out is not nil, writes the report to out. Nothing is written on error.
func Solve(ctx context.Context, filename string, out io.Writer, opts BrcOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.logger()
	fileReader, err := NewFileReader(opts.ReaderType)
	if err != nil {
		return nil, err
	}
	if err := fileReader.Open(filename); err != nil {
		return nil, err
	}
	defer fileReader.Close()
	if opts.Strategy == BrcStrategyPreRead {
		timeBefore := time.Now()
		if _, err = fileReader.Read(); err != nil {
			return nil, err
		}
		logger.Debug("preloaded", "bytes", fileReader.GetSize(), "elapsed", time.Since(timeBefore).String())
	}
	timeBefore := time.Now()
	res, err := Run(ctx, fileReader, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("time taken parse only", "elapsed", time.Since(timeBefore).String())
	if out != nil {
		if err := WriteReport(out, res.Stations); err != nil {
			return nil, err
		}
	}
	return res, nil
}
