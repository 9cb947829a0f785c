package brc

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

const MIN_LINE_SIZE = 6 // label=1, ;=1, temp=3,\n=1 => 6

// ScanConfig is what a single range scan needs from BrcOptions.
type ScanConfig struct {
	BufferSize    int // bytes per read, at least 2*MAX_LINE_SIZE is used
	Hasher        Hasher
	SkipMalformed bool
}

// Result is the outcome of a full run.
type Result struct {
	Stations *StatsMap
	Lines    uint64
	Skipped  uint64
	Ranges   []ByteRange
}

// ScanRange aggregates every line of r into a new StatsMap. Nothing outside
// r is read. An empty range gives an empty map. ctx is checked between
// buffers.
func ScanRange(ctx context.Context, fileReader FileReader, r ByteRange, cfg ScanConfig) (*StatsMap, ScanCounts, error) {
	var counts ScanCounts
	if r.Length <= 0 {
		return NewStatsMap(cfg.Hasher, 0), counts, nil
	}
	// arbitrary value, better too much than future allocation needed
	stationMap := NewStatsMap(cfg.Hasher, int(min(1024, r.Length/MIN_LINE_SIZE+1)))
	var err error
	if fileReader.Loaded() {
		err = asyncPreRead(ctx, fileReader, r, cfg, stationMap, &counts)
	} else {
		err = asyncLazyRead(ctx, fileReader, r, cfg, stationMap, &counts)
	}
	if err != nil {
		return nil, counts, err
	}
	return stationMap, counts, nil
}

// asyncPreRead parses r straight from memory, one newline-terminated slice
// of about BufferSize bytes at a time.
func asyncPreRead(ctx context.Context, fileReader FileReader, r ByteRange, cfg ScanConfig, stationMap *StatsMap, counts *ScanCounts) error {
	buff, n := fileReader.GetChunk(r.Start, r.Length)
	if n != r.Length {
		return &IoError{Op: "read", Path: fileReader.GetFilename(), Offset: r.Start + n, Err: io.ErrUnexpectedEOF}
	}
	step := max(cfg.BufferSize, MAX_LINE_SIZE*2)
	var pos int
	for pos < len(buff) {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := len(buff)
		if pos+step < end {
			// we know buff[pos:] starts after NL, cut after the next one
			if nl := findIndexOf(buff[pos+step:], patternNl); nl >= 0 {
				end = pos + step + nl + 1
			}
		}
		if err := parseLines(buff[pos:end], r.Start+int64(pos), stationMap, cfg.SkipMalformed, counts); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

// asyncLazyRead streams r through one buffer. Bytes after the last NL of a
// read are carried to the front of the buffer for the next one; the buffer
// doubles when a single line does not fit.
func asyncLazyRead(ctx context.Context, fileReader FileReader, r ByteRange, cfg ScanConfig, stationMap *StatsMap, counts *ScanCounts) error {
	buff := make([]byte, max(cfg.BufferSize, MAX_LINE_SIZE*2))
	var totalRead int64 = 0
	var buff_offset int = 0 // keeps track of remaining data after each read
	for totalRead < r.Length {
		if err := ctx.Err(); err != nil {
			return err
		}
		if buff_offset == len(buff) {
			grown := make([]byte, 2*len(buff))
			copy(grown, buff)
			buff = grown
		}
		// ajust buffer to only read what we need
		sizeToRead := min(int64(len(buff)-buff_offset), r.Length-totalRead)
		n, err := fileReader.ReadChunk(buff[buff_offset:buff_offset+int(sizeToRead)], r.Start+totalRead)
		if err != nil {
			return err
		}
		if n == 0 { // file shrank under us
			return &IoError{Op: "read", Path: fileReader.GetFilename(), Offset: r.Start + totalRead, Err: io.ErrUnexpectedEOF}
		}
		chunkStart := r.Start + totalRead - int64(buff_offset)
		totalRead += n
		buff_end := buff_offset + int(n)
		if totalRead == r.Length {
			// ranges end on a line end or at EOF
			return parseLines(buff[:buff_end], chunkStart, stationMap, cfg.SkipMalformed, counts)
		}
		pos := bytes.LastIndexByte(buff[:buff_end], terminator) + 1
		if pos > 0 {
			if err := parseLines(buff[:pos], chunkStart, stationMap, cfg.SkipMalformed, counts); err != nil {
				return err
			}
		}
		buff_offset = copy(buff, buff[pos:buff_end])
	}
	return nil
}

// Run partitions the file in opts.NThreads ranges, scans them in parallel
// and merges the partial maps. Each worker owns its map until Wait returns;
// the first failure cancels the others and nothing is merged.
func Run(ctx context.Context, fileReader FileReader, opts BrcOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !fileReader.IsOpen() {
		return nil, &IoError{Op: "read", Path: fileReader.GetFilename(), Offset: -1, Err: fmt.Errorf("file is not open")}
	}
	hasher, err := NewHasher(opts.Hash)
	if err != nil {
		return nil, err
	}
	logger := opts.logger()

	ranges, err := Partition(fileReader, opts.NThreads)
	if err != nil {
		return nil, err
	}
	logger.Debug("partitioned input",
		"file", fileReader.GetFilename(), "size", fileReader.GetSize(), "ranges", len(ranges))

	cfg := ScanConfig{
		BufferSize:    opts.ReadChunkFactor * chunkReadByteSize,
		Hasher:        hasher,
		SkipMalformed: opts.SkipMalformed,
	}
	allStationMaps := make([]*StatsMap, len(ranges))
	allCounts := make([]ScanCounts, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			stationMap, counts, err := ScanRange(gctx, fileReader, r, cfg)
			if err != nil {
				return fmt.Errorf("range %d [%d, %d): %w", i, r.Start, r.End(), err)
			}
			// slot i belongs to this worker only
			allStationMaps[i] = stationMap
			allCounts[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// last chance to abort before merging
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Ranges: ranges}
	var total ScanCounts
	for i, c := range allCounts {
		logger.Debug("range scanned", "range", i, "start", ranges[i].Start, "length", ranges[i].Length,
			"lines", c.Lines, "skipped", c.Skipped, "keys", allStationMaps[i].Len())
		total.add(c)
	}
	res.Stations = Merge(allStationMaps)
	res.Lines = total.Lines
	res.Skipped = total.Skipped
	if total.Skipped > 0 {
		logger.Warn("skipped malformed lines", "count", total.Skipped)
	}
	logger.Debug("merged", "keys", res.Stations.Len(), "lines", res.Lines)
	return res, nil
}
