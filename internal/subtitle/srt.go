package subtitle

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp formats seconds as an SRT timestamp, HH:MM:SS,mmm.
// The hour field has a minimum width of two digits and widens past 99 hours
// rather than wrapping. The comma decimal separator is the SRT convention
// and is not locale-dependent.
func Timestamp(t float64) string {
	h := int(t / 3600)
	m := int(t/60) % 60
	s := fmt.Sprintf("%06.3f", t-float64(h)*3600-float64(m)*60)
	return fmt.Sprintf("%02d:%02d:%s", h, m, strings.Replace(s, ".", ",", 1))
}

// SerializeSRT renders segments as an SRT document: numbered blocks from 1
// in input order, each followed by one blank line. Segment text is trimmed
// of leading and trailing whitespace; internal whitespace is preserved.
// An empty slice yields an empty string.
func SerializeSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", Timestamp(seg.Start), Timestamp(seg.End))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// SerializeSRTChecked is SerializeSRT with the collaborator data contract
// enforced: a segment with a negative start or end < start fails fast
// instead of emitting negative timestamps.
func SerializeSRTChecked(segments []Segment) (string, error) {
	for i, seg := range segments {
		if seg.Start < 0 {
			return "", fmt.Errorf("segment %d: negative start %.3f", i+1, seg.Start)
		}
		if seg.End < seg.Start {
			return "", fmt.Errorf("segment %d: end %.3f before start %.3f", i+1, seg.End, seg.Start)
		}
	}
	return SerializeSRT(segments), nil
}

// ParseSRT parses an SRT document back into segments. It accepts the exact
// output of SerializeSRT plus the usual lenient variations (CRLF line
// endings, extra blank lines between blocks). Indices must count 1..N in
// order.
func ParseSRT(data string) ([]Segment, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	var segments []Segment
	i := 0
	for {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			return segments, nil
		}

		idx, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			return nil, fmt.Errorf("line %d: expected block index, got %q", i+1, lines[i])
		}
		if idx != len(segments)+1 {
			return nil, fmt.Errorf("line %d: block index %d, expected %d", i+1, idx, len(segments)+1)
		}
		i++

		if i >= len(lines) {
			return nil, fmt.Errorf("block %d: missing timing line", idx)
		}
		start, end, err := parseTimingLine(lines[i])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", idx, err)
		}
		i++

		var text []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			text = append(text, lines[i])
			i++
		}
		segments = append(segments, Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(text, "\n"),
		})
	}
}

func parseTimingLine(line string) (start, end float64, err error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed timing line %q", line)
	}
	if start, err = parseTimestamp(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, err
	}
	if end, err = parseTimestamp(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (float64, error) {
	var h, m int
	var s, ms int
	if _, err := fmt.Sscanf(ts, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000, nil
}
