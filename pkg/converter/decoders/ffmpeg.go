package decoders

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/james-see/audio2midi/pkg/converter"
)

// FFmpegSampleRate is the rate ffmpeg resamples to
const FFmpegSampleRate = 44100

// FFmpeg decodes compressed formats (mp3, m4a, aac, ...) by piping the bytes
// through an ffmpeg process and reading mono float32 samples back
type FFmpeg struct {
	path string
}

// NewFFmpeg creates a decoder using the given ffmpeg binary, "ffmpeg" if empty
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Available reports whether the ffmpeg binary can be found
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

// Decode runs ffmpeg; the process is killed when ctx is cancelled
func (f *FFmpeg) Decode(ctx context.Context, data []byte) (*converter.Audio, error) {
	bin, err := exec.LookPath(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s", converter.ErrDecode, ErrFFmpegNotFound, f.path)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-i", "pipe:0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(FFmpegSampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: ffmpeg exit %d: %s", converter.ErrDecode, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: ffmpeg: %w", converter.ErrDecode, err)
	}

	samples := make([]float64, len(out)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:])))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no samples", converter.ErrDecode)
	}

	return &converter.Audio{
		SampleRate: FFmpegSampleRate,
		Duration:   float64(len(samples)) / FFmpegSampleRate,
		Channels:   [][]float64{samples},
	}, nil
}
