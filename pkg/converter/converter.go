package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator defaults
const (
	DefaultMaxDuration = 30 * time.Second
	genuineConfidence  = 0.85
)

// Options configures a Converter
type Options struct {
	Decoder     Decoder
	Observers   []Observer
	Logger      *zap.Logger
	MaxWindows  int
	Threshold   float64
	MaxEvents   int
	MaxDuration time.Duration
	NoteTicks   uint32
}

// Option is a function that modifies Options
type Option func(*Options)

// WithDecoder sets the audio decoder
func WithDecoder(d Decoder) Option {
	return func(o *Options) {
		o.Decoder = d
	}
}

// WithObserver adds a progress observer
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observers = append(o.Observers, obs)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMaxWindows sets how many peaks are extracted at most
func WithMaxWindows(n int) Option {
	return func(o *Options) {
		o.MaxWindows = n
	}
}

// WithThreshold sets the minimum window peak that produces a note
func WithThreshold(t float64) Option {
	return func(o *Options) {
		o.Threshold = t
	}
}

// WithMaxEvents sets how many notes are written at most
func WithMaxEvents(n int) Option {
	return func(o *Options) {
		o.MaxEvents = n
	}
}

// WithMaxDuration sets how much of the audio is analyzed
func WithMaxDuration(d time.Duration) Option {
	return func(o *Options) {
		o.MaxDuration = d
	}
}

// WithNoteTicks sets note length and spacing in ticks
func WithNoteTicks(ticks uint32) Option {
	return func(o *Options) {
		o.NoteTicks = ticks
	}
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		Logger:      zap.NewNop(),
		MaxWindows:  DefaultMaxWindows,
		Threshold:   DefaultThreshold,
		MaxEvents:   DefaultMaxEvents,
		MaxDuration: DefaultMaxDuration,
		NoteTicks:   NoteTicks,
	}
}

// Converter runs the decode → peaks → pitches → MIDI pipeline and owns the
// conversion state. One conversion at a time per Converter; callers serialize.
type Converter struct {
	opts  Options
	enc   *MIDIEncoder
	state State
	log   *zap.Logger
}

// New creates a new Converter
func New(opts ...Option) *Converter {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Converter{
		opts:  o,
		enc:   NewMIDIEncoder(o.NoteTicks, o.MaxEvents),
		state: StateIdle,
		log:   o.Logger,
	}
}

// State returns the current conversion state
func (c *Converter) State() State {
	return c.state
}

// Convert turns audio bytes into a MIDI artifact. Decode and analysis
// failures are recovered with a fixed note sequence and reported through
// Result.UsedFallback; an error is returned only when ctx is cancelled or
// no bytes could be produced at all.
func (c *Converter) Convert(ctx context.Context, data []byte, fileName string) (*Result, error) {
	start := time.Now()
	c.state = StateIdle
	res := &Result{ID: uuid.NewString(), Confidence: genuineConfidence}
	log := c.log.With(zap.String("conversion_id", res.ID), zap.String("file", fileName))

	c.transition(StateUploading, "Uploading audio file...")
	audio, err := c.decode(ctx, data)
	if ctx.Err() != nil {
		return nil, c.fail(log, fmt.Errorf("conversion cancelled: %w", ctx.Err()))
	}

	var pitches []int
	if err != nil {
		pitches = c.fallback(log, res, NewConversionError(KindDecode, StateUploading, err), FallbackScale())
	} else {
		var cerr *ConversionError
		pitches, cerr = c.analyze(ctx, audio)
		if ctx.Err() != nil {
			return nil, c.fail(log, fmt.Errorf("conversion cancelled: %w", ctx.Err()))
		}
		if cerr != nil {
			pitches = c.fallback(log, res, cerr, FallbackTriad())
		}
	}

	if res.UsedFallback {
		c.skipTo(StateGenerating)
		c.transition(StateGenerating, "Generating fallback MIDI file...")
	} else {
		c.transition(StateGenerating, "Generating MIDI file...")
	}
	midiData, err := c.encode(pitches)
	if err != nil && !res.UsedFallback {
		pitches = c.fallback(log, res, NewConversionError(KindEncoding, StateGenerating, err), FallbackScale())
		midiData, err = c.encode(pitches)
	}
	if err != nil {
		return nil, c.fail(log, NewConversionError(KindEncoding, StateGenerating, err))
	}

	res.Pitches = c.enc.Truncate(pitches)
	res.Artifact = Artifact{
		Data:     midiData,
		Filename: OutputName(fileName),
		MIMEType: MIDIMimeType,
	}
	res.Elapsed = time.Since(start)

	if res.UsedFallback {
		c.transition(StateComplete, "Conversion completed with fallback notes")
	} else {
		c.transition(StateComplete, "Conversion completed!")
	}
	log.Info("conversion complete",
		zap.Int("notes", len(res.Pitches)),
		zap.Bool("fallback", res.UsedFallback),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// ConvertFile converts inputPath and writes the MIDI file to outputPath, or
// next to the input under the derived name when outputPath is empty
func (c *Converter) ConvertFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	res, err := c.Convert(ctx, data, filepath.Base(inputPath))
	if err != nil {
		return nil, err
	}

	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(inputPath), res.Artifact.Filename)
	}
	if err := os.WriteFile(outputPath, res.Artifact.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	res.Artifact.Filename = filepath.Base(outputPath)
	return res, nil
}

func (c *Converter) decode(ctx context.Context, data []byte) (audio *Audio, err error) {
	if c.opts.Decoder == nil {
		return nil, fmt.Errorf("%w: no decoder configured", ErrDecode)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: decoder panic: %v", ErrDecode, r)
		}
	}()

	audio, err = c.opts.Decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, fmt.Errorf("%w: decoder returned no audio", ErrDecode)
	}
	return audio, nil
}

// analyze runs peak extraction and pitch mapping. The sample buffer lives
// only for the duration of this call.
func (c *Converter) analyze(ctx context.Context, audio *Audio) (pitches []int, cerr *ConversionError) {
	stage := StateProcessing
	defer func() {
		if r := recover(); r != nil {
			pitches = nil
			cerr = NewConversionError(KindAnalysisDegenerate, stage, fmt.Errorf("analysis panic: %v", r))
		}
	}()

	c.transition(StateProcessing, "Analyzing audio content...")
	buf := audio.Mono().Clip(c.opts.MaxDuration.Seconds())
	peaks := ExtractPeaks(buf, c.opts.MaxWindows, c.opts.Threshold)
	c.log.Debug("peaks extracted",
		zap.Int("samples", len(buf.Samples)),
		zap.Int("sample_rate", buf.SampleRate),
		zap.Int("peaks", len(peaks)))
	if ctx.Err() != nil {
		return nil, nil
	}

	stage = StateTranscribing
	c.transition(StateTranscribing, "Transcribing musical notes...")
	if len(peaks) == 0 {
		return nil, NewConversionError(KindAnalysisDegenerate, stage, ErrAnalysisDegenerate)
	}
	return MapToPitches(peaks), nil
}

func (c *Converter) encode(pitches []int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoder panic: %v", r)
		}
	}()

	data, err = c.enc.Encode(pitches)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Converter) fallback(log *zap.Logger, res *Result, cerr *ConversionError, pitches []int) []int {
	log.Warn("using fallback notes",
		zap.String("reason", cerr.Kind.String()),
		zap.String("stage", cerr.Stage.String()),
		zap.Error(cerr.Cause))
	res.UsedFallback = true
	res.Reason = cerr.Kind
	res.Cause = cerr
	res.Confidence = 0
	return pitches
}

func (c *Converter) fail(log *zap.Logger, err error) error {
	log.Error("conversion failed", zap.Error(err))
	c.transition(StateFailed, "Conversion failed")
	return err
}

// skipTo announces every stage before next that a fallback run did not reach,
// so observers always see the full stage sequence
func (c *Converter) skipTo(next State) {
	for s := c.state + 1; s < next; s++ {
		switch s {
		case StateProcessing:
			c.transition(s, "Audio could not be decoded, skipping analysis...")
		case StateTranscribing:
			c.transition(s, "Selecting fallback notes...")
		}
	}
}

func (c *Converter) transition(next State, message string) {
	if !c.state.canTransition(next) {
		c.log.Error("invalid state transition",
			zap.Stringer("from", c.state),
			zap.Stringer("to", next))
		return
	}
	c.log.Debug("stage", zap.Stringer("stage", next), zap.String("message", message))
	c.state = next

	p := Progress{Stage: next, Percent: next.Percent(), Message: message}
	for _, obs := range c.opts.Observers {
		obs.OnProgress(p)
	}
}
