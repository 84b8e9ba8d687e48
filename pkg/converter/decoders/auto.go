package decoders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/james-see/audio2midi/pkg/converter"
)

// Auto picks a decoder by sniffing the content. Integer PCM WAV is decoded
// in process, other audio (float or compressed WAV included) goes through ffmpeg
type Auto struct {
	wav    *WAV
	ffmpeg *FFmpeg
}

// NewAuto creates an Auto decoder using the given ffmpeg binary
func NewAuto(ffmpegPath string) *Auto {
	return &Auto{wav: NewWAV(), ffmpeg: NewFFmpeg(ffmpegPath)}
}

// DetectMIME returns the sniffed MIME type of data
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Decode dispatches on the sniffed MIME type
func (a *Auto) Decode(ctx context.Context, data []byte) (*converter.Audio, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("audio/wav"):
		audio, err := a.wav.Decode(ctx, data)
		if errors.Is(err, ErrUnsupportedFormat) {
			return a.ffmpeg.Decode(ctx, data)
		}
		return audio, err
	case strings.HasPrefix(mt.String(), "audio/"), mt.Is("video/mp4"):
		return a.ffmpeg.Decode(ctx, data)
	default:
		return nil, fmt.Errorf("%w: %w: %s", converter.ErrDecode, ErrUnsupportedFormat, mt.String())
	}
}
