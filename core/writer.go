package brc

import (
	"bufio"
	"io"
	"os"
	"strconv"
)

// appendTenths formats v tenths with one decimal: -25 => "-2.5".
func appendTenths(dst []byte, v int64) []byte {
	if v < 0 {
		dst = append(dst, '-')
		v = -v
	}
	dst = strconv.AppendInt(dst, v/10, 10)
	dst = append(dst, '.')
	return append(dst, byte('0'+v%10))
}

// WriteReport writes {name=min/mean/max, ...} sorted by name, followed by
// a newline.
func WriteReport(w io.Writer, stations *StatsMap) error {
	bw := bufio.NewWriter(w)
	buffer := make([]byte, 0, 256)
	buffer = append(buffer, '{')
	for i, station := range stations.Sorted() {
		if i > 0 {
			buffer = append(buffer, ", "...)
		}
		buffer = append(buffer, station.Name...)
		buffer = append(buffer, '=')
		buffer = appendTenths(buffer, int64(station.Min))
		buffer = append(buffer, '/')
		buffer = appendTenths(buffer, station.MeanTenths())
		buffer = append(buffer, '/')
		buffer = appendTenths(buffer, int64(station.Max))
		if _, err := bw.Write(buffer); err != nil {
			return err
		}
		buffer = buffer[:0]
	}
	buffer = append(buffer, '}', '\n')
	if _, err := bw.Write(buffer); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteReportFile writes the report to filename, replacing it.
func WriteReportFile(filename string, stations *StatsMap) error {
	outFs, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &IoError{Op: "create", Path: filename, Offset: -1, Err: err}
	}
	if err := WriteReport(outFs, stations); err != nil {
		outFs.Close()
		return &IoError{Op: "write", Path: filename, Offset: -1, Err: err}
	}
	return outFs.Close()
}
