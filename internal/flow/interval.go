package flow

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Interval is a contiguous span of video frames selected for analysis.
// Start and End are inclusive frame indices; the ID is 1-based in catalog
// order. Gaps between intervals mark excluded spans (motion-corrupted
// frames) and are expected.
type Interval struct {
	ID    int
	Start int
	End   int
}

// FrameCount returns the number of frames covered by the interval.
func (iv Interval) FrameCount() int { return iv.End - iv.Start + 1 }

// LoadIntervals reads an interval catalog file: one `start,end` pair per
// line, `//` comment lines and blank lines ignored.
func LoadIntervals(path string) ([]Interval, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read interval file: %w", err)
	}
	ivs, err := ParseIntervals(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ivs, nil
}

// ParseIntervals decodes an interval catalog held in memory. Intervals must
// not overlap; matrix row order across pipeline stages follows the catalog
// order.
func ParseIntervals(data []byte) ([]Interval, error) {
	var intervals []Interval
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected startFrame,endFrame, got %q", lineNo, line)
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad start frame %q", lineNo, parts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad end frame %q", lineNo, parts[1])
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("line %d: invalid range %d,%d", lineNo, start, end)
		}
		intervals = append(intervals, Interval{ID: len(intervals) + 1, Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan interval file: %w", err)
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("interval file holds no intervals")
	}

	for i := 1; i < len(intervals); i++ {
		prev, cur := intervals[i-1], intervals[i]
		if cur.Start <= prev.End {
			return nil, fmt.Errorf("interval %d (%d,%d) overlaps interval %d (%d,%d)",
				cur.ID, cur.Start, cur.End, prev.ID, prev.Start, prev.End)
		}
	}
	return intervals, nil
}

// FormatIntervals serializes a catalog back to the on-disk form. Parsing the
// output yields the same ordered (start, end) pairs.
func FormatIntervals(intervals []Interval) []byte {
	var b bytes.Buffer
	b.WriteString("// startFrame,endFrame (inclusive)\n")
	for _, iv := range intervals {
		fmt.Fprintf(&b, "%d,%d\n", iv.Start, iv.End)
	}
	return b.Bytes()
}

// ValidateIntervals checks every interval against the available frame count
// and returns a RangeError naming the first violation.
func ValidateIntervals(intervals []Interval, frameCount int) error {
	for _, iv := range intervals {
		if iv.End >= frameCount {
			return Rangef("interval %d covers frames %d-%d but the video has only %d frames",
				iv.ID, iv.Start, iv.End, frameCount)
		}
	}
	return nil
}
