package subtitle

import (
	"strings"
	"testing"
)

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0.0, "00:00:00,000"},
		{"millis", 1.5, "00:00:01,500"},
		{"sub_millisecond_rounds", 1.2345, "00:00:01,234"},
		{"minute_boundary", 60.0, "00:01:00,000"},
		{"hour_boundary", 3600.0, "01:00:00,000"},
		{"mixed", 3725.042, "01:02:05,042"},
		{"hours_widen_past_99", 360000.0, "100:00:00,000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Timestamp(tt.seconds); got != tt.want {
				t.Errorf("Timestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestSerializeSRT_Empty(t *testing.T) {
	if got := SerializeSRT(nil); got != "" {
		t.Errorf("SerializeSRT(nil) = %q, want empty", got)
	}
	if got := SerializeSRT([]Segment{}); got != "" {
		t.Errorf("SerializeSRT([]) = %q, want empty", got)
	}
}

func TestSerializeSRT_SingleBlock(t *testing.T) {
	got := SerializeSRT([]Segment{{Start: 0.0, End: 1.5, Text: " Hi "}})
	want := "1\n00:00:00,000 --> 00:00:01,500\nHi\n\n"
	if got != want {
		t.Errorf("SerializeSRT = %q, want %q", got, want)
	}
}

func TestSerializeSRT_BlockSeparation(t *testing.T) {
	got := SerializeSRT([]Segment{
		{Start: 0.0, End: 1.5, Text: "first"},
		{Start: 1.5, End: 3.0, Text: "second"},
	})

	want := "1\n" +
		"00:00:00,000 --> 00:00:01,500\n" +
		"first\n" +
		"\n" +
		"2\n" +
		"00:00:01,500 --> 00:00:03,000\n" +
		"second\n" +
		"\n"
	if got != want {
		t.Errorf("SerializeSRT = %q, want %q", got, want)
	}

	// Exactly one empty line between blocks, none doubled.
	if strings.Contains(got, "\n\n\n") {
		t.Error("blocks separated by more than one blank line")
	}
}

func TestSerializeSRT_InternalWhitespacePreserved(t *testing.T) {
	got := SerializeSRT([]Segment{{Start: 0, End: 2, Text: "  two\nlines  "}})
	want := "1\n00:00:00,000 --> 00:00:02,000\ntwo\nlines\n\n"
	if got != want {
		t.Errorf("SerializeSRT = %q, want %q", got, want)
	}
}

func TestSerializeSRTChecked(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		wantErr  bool
	}{
		{"valid", []Segment{{Start: 0, End: 1, Text: "ok"}}, false},
		{"zero_length_segment", []Segment{{Start: 1, End: 1, Text: "ok"}}, false},
		{"end_before_start", []Segment{{Start: 2, End: 1, Text: "bad"}}, true},
		{"negative_start", []Segment{{Start: -0.5, End: 1, Text: "bad"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SerializeSRTChecked(tt.segments)
			if (err != nil) != tt.wantErr {
				t.Errorf("SerializeSRTChecked err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSerializeSRT_MonotonicTimestamps(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 2.2, Text: "a"},
		{Start: 2.2, End: 4.0, Text: "b"},
		{Start: 4.0, End: 7.75, Text: "c"},
	}
	parsed, err := ParseSRT(SerializeSRT(segments))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	for i := 1; i < len(parsed); i++ {
		if parsed[i].Start < parsed[i-1].Start {
			t.Errorf("segment %d start %.3f precedes segment %d start %.3f",
				i+1, parsed[i].Start, i, parsed[i-1].Start)
		}
	}
}

func TestParseSRT_RoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 1.5, Text: " Hello there. "},
		{Start: 1.5, End: 4.25, Text: "Second segment,\nsplit over two lines."},
		{Start: 4.25, End: 3725.042, Text: "Last one."},
	}

	parsed, err := ParseSRT(SerializeSRT(segments))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("got %d segments, want %d", len(parsed), len(segments))
	}
	for i, seg := range segments {
		want := Segment{Start: seg.Start, End: seg.End, Text: strings.TrimSpace(seg.Text)}
		got := parsed[i]
		if got.Text != want.Text {
			t.Errorf("segment %d text = %q, want %q", i+1, got.Text, want.Text)
		}
		// Timestamps survive at millisecond precision.
		if diff := got.Start - want.Start; diff > 0.001 || diff < -0.001 {
			t.Errorf("segment %d start = %v, want %v", i+1, got.Start, want.Start)
		}
		if diff := got.End - want.End; diff > 0.001 || diff < -0.001 {
			t.Errorf("segment %d end = %v, want %v", i+1, got.End, want.End)
		}
	}
}

func TestParseSRT_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage_index", "one\n00:00:00,000 --> 00:00:01,000\nhi\n\n"},
		{"index_gap", "2\n00:00:00,000 --> 00:00:01,000\nhi\n\n"},
		{"missing_timing", "1\n"},
		{"malformed_timing", "1\n00:00:00,000 -> 00:00:01,000\nhi\n\n"},
		{"malformed_timestamp", "1\nab:cd:ef,gh --> 00:00:01,000\nhi\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSRT(tt.data); err == nil {
				t.Error("expected parse error, got nil")
			}
		})
	}
}

func TestParseSRT_Empty(t *testing.T) {
	got, err := ParseSRT("")
	if err != nil {
		t.Fatalf("ParseSRT(\"\"): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d segments, want 0", len(got))
	}
}
