// Package main is the entry point for the audio2midi CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/james-see/audio2midi/pkg/api"
	"github.com/james-see/audio2midi/pkg/config"
	"github.com/james-see/audio2midi/pkg/converter"
	"github.com/james-see/audio2midi/pkg/converter/decoders"
	"github.com/james-see/audio2midi/pkg/logging"
	"github.com/james-see/audio2midi/pkg/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg        = config.Load()
	outputFile string
	quiet      bool
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "audio2midi",
	Short: "Convert recorded audio into a MIDI file",
	Long: `audio2midi approximates note events from the loudness of a recording
and writes them as a single-track (Type 0) MIDI file.

Accepts .mp3, .wav, .m4a and .aac input. WAV is decoded natively, other
formats need ffmpeg on the PATH. Audio that cannot be decoded still produces
a valid MIDI file built from a fixed fallback scale.

Examples:
  audio2midi convert song.wav
  audio2midi convert song.mp3 -o melody.mid
  audio2midi inspect song_converted.mid
  audio2midi tui
  audio2midi serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert an audio file to MIDI",
	Long:  `Converts an audio file and writes <basename>_converted.mid next to it unless --output is given.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "List the notes of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Human-readable debug logging")

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	convertCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	convertCmd.Flags().IntVar(&cfg.MaxWindows, "windows", cfg.MaxWindows, "Maximum number of analysis windows")
	convertCmd.Flags().Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Minimum window peak that produces a note")
	convertCmd.Flags().IntVar(&cfg.MaxEvents, "max-notes", cfg.MaxEvents, "Maximum number of notes written")
	convertCmd.Flags().DurationVar(&cfg.MaxDuration, "max-duration", cfg.MaxDuration, "Analyze at most this much audio")
	convertCmd.Flags().IntVar(&cfg.NoteTicks, "note-ticks", cfg.NoteTicks, "Note length and spacing in ticks")

	// serve command
	serveCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "Server port")

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *zap.Logger {
	if verbose {
		return logging.Must("debug", true)
	}
	return logging.Must(cfg.LogLevel, cfg.LogDev)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	if !converter.IsAudioFile(input, "") {
		return fmt.Errorf("%s: unsupported file type (want .mp3, .wav, .m4a or .aac)", input)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	opts := append(cfg.ConverterOptions(),
		converter.WithDecoder(decoders.NewAuto(cfg.FFmpegPath)),
		converter.WithLogger(logger),
	)
	if !quiet {
		opts = append(opts, converter.WithObserver(converter.ObserverFunc(func(p converter.Progress) {
			fmt.Printf("[%3d%%] %s\n", p.Percent, p.Message)
		})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := converter.New(opts...).ConvertFile(ctx, input, outputFile)
	if err != nil {
		return err
	}

	if result.UsedFallback {
		fmt.Printf("Warning: %s, wrote fallback notes (%s)\n", result.Reason, result.Cause)
	}
	output := outputFile
	if output == "" {
		output = filepath.Join(filepath.Dir(input), result.Artifact.Filename)
	}
	fmt.Printf("Converted %s -> %s (%d notes, %s, %s)\n",
		input, output, len(result.Pitches),
		humanize.Bytes(uint64(len(result.Artifact.Data))),
		result.Elapsed.Round(time.Millisecond))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	info, err := converter.InspectFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Format %d, %d track(s), %d ticks per quarter note\n", info.Format, info.Tracks, info.Resolution)
	for _, ev := range info.Events {
		kind := "off"
		if ev.On {
			kind = "on "
		}
		fmt.Printf("%8d  note %s  pitch %3d  velocity %3d\n", ev.Tick, kind, ev.Pitch, ev.Velocity)
	}
	fmt.Printf("%s notes\n", humanize.Comma(int64(len(info.Pitches()))))
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	fmt.Printf("Starting API server on port %d...\n", cfg.Port)
	return api.StartServer(cfg, logger)
}
