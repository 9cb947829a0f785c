package brc

// ScanCounts tallies the lines a scan has seen.
type ScanCounts struct {
	Lines   uint64 // parsed into the map
	Skipped uint64 // malformed, only with SkipMalformed
}

func (c *ScanCounts) add(o ScanCounts) {
	c.Lines += o.Lines
	c.Skipped += o.Skipped
}

// ParseLines feeds every line of chunk to stationMap and stops at the first
// malformed one. chunk must start at a line start; a last line without '\n'
// is parsed too.
func ParseLines(chunk []byte, stationMap *StatsMap) error {
	var counts ScanCounts
	return parseLines(chunk, 0, stationMap, false, &counts)
}

// parseLines is ParseLines with base, the file offset of chunk[0], used to
// locate errors.
func parseLines(chunk []byte, base int64, stationMap *StatsMap, skipMalformed bool, counts *ScanCounts) error {
	for name_start := 0; name_start < len(chunk); {
		line_end := findIndexOf(chunk[name_start:], patternNl)
		next := name_start + line_end + 1
		if line_end < 0 { // unterminated last line
			line_end = len(chunk) - name_start
			next = len(chunk)
		}
		line := chunk[name_start : name_start+line_end]

		name_end := findIndexOf(line, patternSemi)
		reason := ParseReason("")
		var temp int32
		switch {
		case name_end < 0:
			reason = ReasonSeparator
		case name_end == 0:
			reason = ReasonEmptyKey
		default:
			var ok bool
			if temp, ok = parseTenths(line[name_end+1:]); !ok {
				reason = ReasonValue
			}
		}
		if reason != "" {
			if !skipMalformed {
				return &ParseError{
					Offset: base + int64(name_start),
					Line:   append([]byte(nil), line...),
					Reason: reason,
				}
			}
			counts.Skipped++
		} else {
			stationMap.Update(line[:name_end], temp)
			counts.Lines++
		}
		name_start = next
	}
	return nil
}
