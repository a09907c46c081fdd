// Package subtitle holds the transcript data model and the SRT caption
// serialization used for download artifacts.
package subtitle

// Segment is a contiguous span of audio with its transcribed text.
// Times are seconds from the start of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the result of one transcription request. Segments are in
// chronological order, which is also serialization order. Duration is the
// audio length in seconds; zero means the provider did not report it.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}
