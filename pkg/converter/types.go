// Package converter turns decoded audio into a single-track MIDI file by
// approximating note events from amplitude peaks.
package converter

import (
	"context"
	"time"
)

// Fixed note constants used for every emitted event
const (
	TicksPerQuarter = 96 // MIDI division written into the header
	NoteTicks       = 96 // Default note length and spacing (one quarter note)
	VelocityOn      = 64
	VelocityOff     = 0
	MIDIMimeType    = "audio/midi"
)

// SampleBuffer is a decoded mono signal with amplitudes in [-1.0, 1.0]
type SampleBuffer struct {
	SampleRate int
	Duration   float64 // seconds
	Samples    []float64
}

// Clip returns the buffer truncated to at most maxSeconds of audio.
// A non-positive maxSeconds or sample rate leaves the buffer untouched.
func (b SampleBuffer) Clip(maxSeconds float64) SampleBuffer {
	if maxSeconds <= 0 || b.SampleRate <= 0 {
		return b
	}
	limit := int(maxSeconds * float64(b.SampleRate))
	if limit >= len(b.Samples) {
		return b
	}
	return SampleBuffer{
		SampleRate: b.SampleRate,
		Duration:   float64(limit) / float64(b.SampleRate),
		Samples:    b.Samples[:limit],
	}
}

// PitchEvent is one note-on/note-off pair as written to the track
type PitchEvent struct {
	Pitch         uint8
	VelocityOn    uint8
	VelocityOff   uint8
	DurationTicks uint32
}

// NewPitchEvents builds the fixed-velocity events for a pitch sequence
func NewPitchEvents(pitches []int, durationTicks uint32) []PitchEvent {
	events := make([]PitchEvent, 0, len(pitches))
	for _, p := range pitches {
		events = append(events, PitchEvent{
			Pitch:         clampPitch(p),
			VelocityOn:    VelocityOn,
			VelocityOff:   VelocityOff,
			DurationTicks: durationTicks,
		})
	}
	return events
}

// Audio is what a Decoder produces: one slice of samples per channel
type Audio struct {
	SampleRate int
	Duration   float64 // seconds
	Channels   [][]float64
}

// Mono returns the first channel as a SampleBuffer
func (a *Audio) Mono() SampleBuffer {
	buf := SampleBuffer{SampleRate: a.SampleRate, Duration: a.Duration}
	if len(a.Channels) > 0 {
		buf.Samples = a.Channels[0]
	}
	return buf
}

// Decoder turns compressed or container audio bytes into raw samples
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Audio, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(ctx context.Context, data []byte) (*Audio, error)

// Decode calls f(ctx, data)
func (f DecoderFunc) Decode(ctx context.Context, data []byte) (*Audio, error) {
	return f(ctx, data)
}

// Artifact is the produced MIDI file
type Artifact struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Result holds the outcome of a conversion, including whether the notes
// came from the audio or from a fixed fallback sequence
type Result struct {
	ID           string
	Artifact     Artifact
	Pitches      []int
	UsedFallback bool
	Reason       ErrorKind
	Cause        error
	Confidence   float64
	Elapsed      time.Duration
}
