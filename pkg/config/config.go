// Package config loads audio2midi settings from the environment
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/james-see/audio2midi/pkg/converter"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Analysis
	MaxWindows  int
	Threshold   float64
	MaxEvents   int
	MaxDuration time.Duration
	NoteTicks   int

	// Decoding
	FFmpegPath string

	// Server
	Port          int
	MaxUploadSize int64 // bytes

	// Logging
	LogLevel string
	LogDev   bool
}

// Load reads configuration from environment variables with defaults matching
// the converter package.
func Load() Config {
	return Config{
		MaxWindows:  envInt("AUDIO2MIDI_MAX_WINDOWS", converter.DefaultMaxWindows),
		Threshold:   envFloat("AUDIO2MIDI_THRESHOLD", converter.DefaultThreshold),
		MaxEvents:   envInt("AUDIO2MIDI_MAX_EVENTS", converter.DefaultMaxEvents),
		MaxDuration: time.Duration(envInt("AUDIO2MIDI_MAX_DURATION", 30)) * time.Second,
		NoteTicks:   envInt("AUDIO2MIDI_NOTE_TICKS", converter.NoteTicks),

		FFmpegPath: envStr("AUDIO2MIDI_FFMPEG", "ffmpeg"),

		Port:          envInt("AUDIO2MIDI_PORT", 8080),
		MaxUploadSize: int64(envInt("AUDIO2MIDI_MAX_UPLOAD", 100<<20)),

		LogLevel: envStr("AUDIO2MIDI_LOG_LEVEL", "info"),
		LogDev:   envBool("AUDIO2MIDI_LOG_DEV", false),
	}
}

// ConverterOptions maps the analysis settings onto converter options
func (c Config) ConverterOptions() []converter.Option {
	opts := []converter.Option{
		converter.WithMaxWindows(c.MaxWindows),
		converter.WithThreshold(c.Threshold),
		converter.WithMaxEvents(c.MaxEvents),
		converter.WithMaxDuration(c.MaxDuration),
	}
	if c.NoteTicks > 0 {
		opts = append(opts, converter.WithNoteTicks(uint32(c.NoteTicks)))
	}
	return opts
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
