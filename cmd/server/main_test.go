package main

import (
	"os"
	"testing"
)

func TestRunReturnsLoggerError(t *testing.T) {
	t.Setenv("AUDIO2MIDI_LOG_LEVEL", "loud")
	args := os.Args
	os.Args = []string{"server"}
	defer func() { os.Args = args }()

	if err := run(); err == nil {
		t.Error("run() with an invalid log level should return an error")
	}
}
