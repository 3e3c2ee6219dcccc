// Package whisper turns saved utterance files into text.
package whisper

import (
	"context"
	"errors"
	"time"
)

var ErrEmptyTranscript = errors.New("transcriber returned empty response")

// Transcript is the text of one utterance
type Transcript struct {
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Segments    []Segment `json:"segments,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Segment is a timed slice of a transcript
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	ID    int     `json:"id"`
}

// Transcriber converts a WAV file on disk into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*Transcript, error)
}
