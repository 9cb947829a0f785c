package brc

import "io"

const MAX_LINE_SIZE = 128 // label=100, ;=1, temp=5,\n=1 => 107, round to 128

// ByteRange is a line-aligned span [Start, Start+Length) of the input.
type ByteRange struct {
	Start  int64
	Length int64
}

func (r ByteRange) End() int64 { return r.Start + r.Length }

// Partition splits the file in exactly n contiguous ranges covering
// [0, size). Candidate boundaries are every ceil(size/n) bytes; each one but
// the last moves forward to just past the next '\n', or to the end of the
// file. Ranges may be empty when n exceeds the number of lines.
func Partition(fileReader FileReader, n int) ([]ByteRange, error) {
	if n < 1 {
		return nil, optionsError("n_threads must be at least 1, got %d", n)
	}
	size := fileReader.GetSize()
	t_chunk_size := size / int64(n)
	if size%int64(n) != 0 {
		t_chunk_size += 1
	}
	ranges := make([]ByteRange, n)
	buff := make([]byte, MAX_LINE_SIZE)
	var start int64
	for i := 0; i < n; i++ {
		end := size
		if i < n-1 {
			candidate := max(int64(i+1)*t_chunk_size, start)
			var err error
			if end, err = nextLineStart(fileReader, buff, candidate); err != nil {
				return nil, err
			}
		}
		ranges[i] = ByteRange{Start: start, Length: end - start}
		start = end
	}
	return ranges, nil
}

// nextLineStart returns the offset just past the first '\n' at or after
// from, or the file size when there is none.
func nextLineStart(fileReader FileReader, buff []byte, from int64) (int64, error) {
	size := fileReader.GetSize()
	for from < size {
		n, err := fileReader.ReadChunk(buff[:min(int64(len(buff)), size-from)], from)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, &IoError{Op: "read", Path: fileReader.GetFilename(), Offset: from, Err: io.ErrUnexpectedEOF}
		}
		if i := findIndexOf(buff[:n], patternNl); i >= 0 {
			return from + int64(i) + 1, nil
		}
		from += n
	}
	return size, nil
}
