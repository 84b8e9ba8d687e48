// Package decoders provides audio decoders for the converter
package decoders

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/james-see/audio2midi/pkg/converter"
)

// Decoder errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTruncated         = errors.New("audio data truncated")
	ErrFFmpegNotFound    = errors.New("ffmpeg not found")
)

const wavFormatPCM = 1

// WAV decodes RIFF/WAVE files holding integer PCM samples
type WAV struct{}

// NewWAV creates a WAV decoder
func NewWAV() *WAV {
	return &WAV{}
}

// Decode reads the whole PCM buffer and splits it per channel
func (w *WAV) Decode(ctx context.Context, data []byte) (*converter.Audio, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %w: not a valid WAV file", converter.ErrDecode, ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: %w: format tag 0x%04X", converter.ErrDecode, ErrUnsupportedFormat, d.WavAudioFormat)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", converter.ErrDecode, ErrTruncated, err)
	}

	channels := deinterleave(buf, int(d.NumChans), int(d.BitDepth))
	frames := 0
	if len(channels) > 0 {
		frames = len(channels[0])
	}
	return &converter.Audio{
		SampleRate: int(d.SampleRate),
		Duration:   float64(frames) / float64(d.SampleRate),
		Channels:   channels,
	}, nil
}

// deinterleave splits the buffer per channel and scales samples to [-1.0, 1.0]
func deinterleave(buf *audio.IntBuffer, numChans, bitDepth int) [][]float64 {
	if numChans < 1 {
		numChans = 1
	}
	frames := len(buf.Data) / numChans

	channels := make([][]float64, numChans)
	for ch := range channels {
		channels[ch] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChans; ch++ {
			channels[ch][i] = normalize(buf.Data[i*numChans+ch], bitDepth)
		}
	}
	return channels
}

func normalize(v, bitDepth int) float64 {
	if bitDepth == 8 {
		// 8-bit PCM is unsigned
		return float64(v-128) / 128
	}
	return float64(v) / float64(int64(1)<<(bitDepth-1))
}
