package copyengine

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	progressPattern = regexp.MustCompile(`^\s*[\d,\.]+[KMGTkmgt]?\s+(\d+)%`)
	sentPattern     = regexp.MustCompile(`^sent ([\d,]+) bytes`)
)

// parseFileStart decodes an out-format line tagged by fileStartPrefix into
// the file name and declared length.
func parseFileStart(line string) (name string, size int64, ok bool) {
	rest, found := strings.CutPrefix(line, fileStartPrefix)
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return "", 0, false
	}
	name = rest[:idx]
	size, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return name, size, true
}

// parseProgress extracts the percent column of an rsync per-file progress
// line ("  1,234,567  45%  12.3MB/s  0:00:12").
func parseProgress(line string) (float64, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return percent, true
}

// parseSentBytes reads the summary line rsync prints at the end of a run.
func parseSentBytes(line string) (int64, bool) {
	match := sentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseInt(strings.ReplaceAll(match[1], ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// scanCarriageLines splits on both newlines and carriage returns, because
// rsync redraws its progress line with bare \r.
func scanCarriageLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if idx := bytes.IndexAny(data, "\r\n"); idx >= 0 {
		return idx + 1, data[:idx], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanCarriageLines
