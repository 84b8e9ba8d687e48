package converter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// staticDecoder returns the same mono audio for any input
func staticDecoder(sampleRate int, samples []float64) Decoder {
	return DecoderFunc(func(ctx context.Context, data []byte) (*Audio, error) {
		return &Audio{
			SampleRate: sampleRate,
			Duration:   float64(len(samples)) / float64(sampleRate),
			Channels:   [][]float64{samples},
		}, nil
	})
}

func failingDecoder(err error) Decoder {
	return DecoderFunc(func(ctx context.Context, data []byte) (*Audio, error) {
		return nil, err
	})
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConvertSingleNote(t *testing.T) {
	// 2s at 44.1kHz, silent except for one sample of 0.5 in the fourth window
	samples := make([]float64, 88200)
	samples[20000] = 0.5

	rec := &Recorder{}
	c := New(WithDecoder(staticDecoder(44100, samples)), WithObserver(rec))

	res, err := c.Convert(context.Background(), []byte("audio"), "song.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !equalInts(res.Pitches, []int{72}) {
		t.Errorf("Pitches = %v, want [72]", res.Pitches)
	}
	if res.UsedFallback {
		t.Errorf("UsedFallback = true, want false (reason %s)", res.Reason)
	}
	if res.Reason != KindNone {
		t.Errorf("Reason = %s, want none", res.Reason)
	}
	if res.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", res.Confidence)
	}
	if res.ID == "" {
		t.Error("ID is empty")
	}
	if res.Artifact.Filename != "song_converted.mid" {
		t.Errorf("Filename = %q, want song_converted.mid", res.Artifact.Filename)
	}
	if res.Artifact.MIMEType != "audio/midi" {
		t.Errorf("MIMEType = %q, want audio/midi", res.Artifact.MIMEType)
	}

	want, _ := Encode([]int{72}, DefaultMaxEvents)
	if !bytes.Equal(res.Artifact.Data, want) {
		t.Errorf("Artifact.Data = % X, want % X", res.Artifact.Data, want)
	}

	wantStages := []State{StateUploading, StateProcessing, StateTranscribing, StateGenerating, StateComplete}
	if got := rec.Stages(); !equalStates(got, wantStages) {
		t.Errorf("stages = %v, want %v", got, wantStages)
	}
	wantPercent := []int{20, 40, 70, 90, 100}
	for i, ev := range rec.Events {
		if ev.Percent != wantPercent[i] {
			t.Errorf("event %d percent = %d, want %d", i, ev.Percent, wantPercent[i])
		}
	}
	if last, _ := rec.Last(); last.Message != "Conversion completed!" {
		t.Errorf("last message = %q", last.Message)
	}
	if c.State() != StateComplete {
		t.Errorf("State() = %s, want complete", c.State())
	}
}

func TestConvertDecodeFailure(t *testing.T) {
	rec := &Recorder{}
	c := New(WithDecoder(failingDecoder(errors.New("corrupt header"))), WithObserver(rec))

	res, err := c.Convert(context.Background(), []byte("garbage"), "broken.mp3")
	if err != nil {
		t.Fatalf("Convert() error = %v, want fallback result", err)
	}
	if !res.UsedFallback {
		t.Error("UsedFallback = false, want true")
	}
	if res.Reason != KindDecode {
		t.Errorf("Reason = %s, want decode", res.Reason)
	}
	if !errors.Is(res.Cause, ErrDecode) {
		t.Errorf("Cause = %v, want ErrDecode", res.Cause)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if !equalInts(res.Pitches, FallbackScale()) {
		t.Errorf("Pitches = %v, want %v", res.Pitches, FallbackScale())
	}

	want, _ := Encode(FallbackScale(), DefaultMaxEvents)
	if !bytes.Equal(res.Artifact.Data, want) {
		t.Error("Artifact.Data does not match the encoded fallback scale")
	}

	wantStages := []State{StateUploading, StateProcessing, StateTranscribing, StateGenerating, StateComplete}
	if got := rec.Stages(); !equalStates(got, wantStages) {
		t.Errorf("stages = %v, want %v", got, wantStages)
	}
	wantPercent := []int{20, 40, 70, 90, 100}
	for i, ev := range rec.Events {
		if i < len(wantPercent) && ev.Percent != wantPercent[i] {
			t.Errorf("event %d percent = %d, want %d", i, ev.Percent, wantPercent[i])
		}
	}
	if last, _ := rec.Last(); last.Message != "Conversion completed with fallback notes" {
		t.Errorf("last message = %q", last.Message)
	}
}

func TestConvertDecoderEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		decoder Decoder
	}{
		{"no decoder", nil},
		{"nil audio", DecoderFunc(func(ctx context.Context, data []byte) (*Audio, error) { return nil, nil })},
		{"panic", DecoderFunc(func(ctx context.Context, data []byte) (*Audio, error) { panic("boom") })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(WithDecoder(tt.decoder)).Convert(context.Background(), nil, "x.wav")
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if res.Reason != KindDecode || !equalInts(res.Pitches, FallbackScale()) {
				t.Errorf("got reason %s pitches %v, want decode fallback scale", res.Reason, res.Pitches)
			}
		})
	}
}

func TestConvertSilence(t *testing.T) {
	rec := &Recorder{}
	c := New(WithDecoder(staticDecoder(8000, make([]float64, 8000))), WithObserver(rec))

	res, err := c.Convert(context.Background(), []byte("audio"), "quiet.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Reason != KindAnalysisDegenerate {
		t.Errorf("Reason = %s, want analysis_degenerate", res.Reason)
	}
	if !errors.Is(res.Cause, ErrAnalysisDegenerate) {
		t.Errorf("Cause = %v, want ErrAnalysisDegenerate", res.Cause)
	}
	if !equalInts(res.Pitches, []int{60, 64, 67}) {
		t.Errorf("Pitches = %v, want [60 64 67]", res.Pitches)
	}

	wantStages := []State{StateUploading, StateProcessing, StateTranscribing, StateGenerating, StateComplete}
	if got := rec.Stages(); !equalStates(got, wantStages) {
		t.Errorf("stages = %v, want %v", got, wantStages)
	}
}

func TestConvertClipsDuration(t *testing.T) {
	// 40s at 100Hz, loud only in the last 10s
	samples := make([]float64, 4000)
	for i := 3000; i < len(samples); i++ {
		samples[i] = 0.9
	}

	res, err := New(WithDecoder(staticDecoder(100, samples))).Convert(context.Background(), nil, "long.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Reason != KindAnalysisDegenerate {
		t.Errorf("Reason = %s, want analysis_degenerate (audio past 30s must be ignored)", res.Reason)
	}

	res, err = New(WithDecoder(staticDecoder(100, samples)), WithMaxDuration(time.Minute)).
		Convert(context.Background(), nil, "long.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.UsedFallback {
		t.Errorf("UsedFallback = true with a 1m limit, reason %s", res.Reason)
	}
}

func TestConvertTruncatesPitches(t *testing.T) {
	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.5
	}

	res, err := New(WithDecoder(staticDecoder(8000, samples))).Convert(context.Background(), nil, "loud.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(res.Pitches) != DefaultMaxEvents {
		t.Errorf("got %d pitches, want %d", len(res.Pitches), DefaultMaxEvents)
	}

	info, err := Inspect(res.Artifact.Data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if got := info.Pitches(); !equalInts(got, res.Pitches) {
		t.Errorf("file pitches = %v, result pitches = %v", got, res.Pitches)
	}
}

func TestConvertOptions(t *testing.T) {
	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.25
	}

	c := New(
		WithDecoder(staticDecoder(8000, samples)),
		WithMaxWindows(4),
		WithThreshold(0.3),
	)
	res, err := c.Convert(context.Background(), nil, "a.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Reason != KindAnalysisDegenerate {
		t.Errorf("Reason = %s, want analysis_degenerate with threshold above every peak", res.Reason)
	}

	c = New(
		WithDecoder(staticDecoder(8000, samples)),
		WithMaxWindows(4),
		WithMaxEvents(2),
		WithNoteTicks(48),
	)
	res, err = c.Convert(context.Background(), nil, "a.wav")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !equalInts(res.Pitches, []int{66, 66}) {
		t.Errorf("Pitches = %v, want [66 66]", res.Pitches)
	}
	info, err := Inspect(res.Artifact.Data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if last := info.Events[len(info.Events)-1]; last.Tick != 48*3 {
		t.Errorf("last event tick = %d, want %d", last.Tick, 48*3)
	}
}

func TestConvertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &Recorder{}
	c := New(WithDecoder(staticDecoder(8000, make([]float64, 100))), WithObserver(rec))

	res, err := c.Convert(ctx, nil, "a.wav")
	if err == nil {
		t.Fatalf("Convert() = %+v, want error", res)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Convert() error = %v, want context.Canceled", err)
	}
	if c.State() != StateFailed {
		t.Errorf("State() = %s, want failed", c.State())
	}
	if last, _ := rec.Last(); last.Stage != StateFailed {
		t.Errorf("last stage = %s, want failed", last.Stage)
	}
}

func TestConvertReusable(t *testing.T) {
	c := New(WithDecoder(failingDecoder(errors.New("bad"))))
	for i := 0; i < 2; i++ {
		if _, err := c.Convert(context.Background(), nil, "a.wav"); err != nil {
			t.Fatalf("Convert() #%d error = %v", i, err)
		}
		if c.State() != StateComplete {
			t.Errorf("State() after run %d = %s, want complete", i, c.State())
		}
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(input, []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(WithDecoder(failingDecoder(errors.New("bad"))))
	res, err := c.ConvertFile(context.Background(), input, "")
	if err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}

	output := filepath.Join(dir, "song_converted.mid")
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(data, res.Artifact.Data) {
		t.Error("written file does not match the artifact")
	}

	explicit := filepath.Join(dir, "out.mid")
	res, err = c.ConvertFile(context.Background(), input, explicit)
	if err != nil {
		t.Fatalf("ConvertFile() error = %v", err)
	}
	if res.Artifact.Filename != "out.mid" {
		t.Errorf("Filename = %q, want out.mid", res.Artifact.Filename)
	}
	if _, err := os.Stat(explicit); err != nil {
		t.Errorf("explicit output not written: %v", err)
	}

	if _, err := c.ConvertFile(context.Background(), filepath.Join(dir, "missing.wav"), ""); err == nil {
		t.Error("ConvertFile() on a missing input should fail")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"song.mp3", "song_converted.mid"},
		{"my.track.wav", "my.track_converted.mid"},
		{"/tmp/dir/take1.m4a", "take1_converted.mid"},
		{"noext", "noext_converted.mid"},
		{"", "_converted.mid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := OutputName(tt.input); got != tt.want {
				t.Errorf("OutputName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		filename string
		mimeType string
		want     bool
	}{
		{"song.mp3", "", true},
		{"song.WAV", "", true},
		{"song.m4a", "", true},
		{"song.aac", "", true},
		{"song.flac", "", false},
		{"notes.txt", "", false},
		{"blob", "audio/ogg", true},
		{"blob", "Audio/Mpeg", true},
		{"notes.txt", "text/plain", false},
	}

	for _, tt := range tests {
		if got := IsAudioFile(tt.filename, tt.mimeType); got != tt.want {
			t.Errorf("IsAudioFile(%q, %q) = %v, want %v", tt.filename, tt.mimeType, got, tt.want)
		}
	}
}

func TestConversionError(t *testing.T) {
	cause := errors.New("bad frame")
	tests := []struct {
		kind        ErrorKind
		sentinel    error
		recoverable bool
	}{
		{KindDecode, ErrDecode, true},
		{KindAnalysisDegenerate, ErrAnalysisDegenerate, true},
		{KindEncoding, ErrEncoding, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewConversionError(tt.kind, StateGenerating, cause)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if !errors.Is(err, cause) {
				t.Error("cause is not unwrapped")
			}
			if err.IsRecoverable() != tt.recoverable {
				t.Errorf("IsRecoverable() = %v, want %v", err.IsRecoverable(), tt.recoverable)
			}
		})
	}
}

func TestInvalidTransitionDoesNotPanic(t *testing.T) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatal(err)
	}
	rec := &Recorder{}
	c := New(WithLogger(logger), WithObserver(rec))
	c.state = StateComplete

	c.transition(StateProcessing, "Analyzing audio content...")
	if c.State() != StateComplete {
		t.Errorf("State() = %s, want complete after a rejected transition", c.State())
	}
	if len(rec.Events) != 0 {
		t.Errorf("rejected transition notified observers: %v", rec.Events)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateUploading, true},
		{StateUploading, StateGenerating, true},
		{StateTranscribing, StateProcessing, false},
		{StateProcessing, StateFailed, true},
		{StateComplete, StateFailed, false},
		{StateFailed, StateUploading, false},
	}

	for _, tt := range tests {
		if got := tt.from.canTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s allowed = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
