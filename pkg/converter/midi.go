package converter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Encoder defaults
const (
	DefaultMaxEvents = 12
	maxVLQ           = 0x0FFFFFFF // largest value that fits in four VLQ bytes
	headerChunkSize  = 14
	chunkHeaderSize  = 8
)

var endOfTrack = []byte{0x00, 0xFF, 0x2F, 0x00}

// MIDIEncoder writes pitch sequences as single-track Type 0 MIDI files
type MIDIEncoder struct {
	noteTicks uint32
	maxEvents int
}

// NewMIDIEncoder creates an encoder. noteTicks is both the note length and the
// gap between notes; maxEvents bounds the number of notes written.
func NewMIDIEncoder(noteTicks uint32, maxEvents int) *MIDIEncoder {
	if noteTicks == 0 || noteTicks > maxVLQ {
		noteTicks = NoteTicks
	}
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &MIDIEncoder{noteTicks: noteTicks, maxEvents: maxEvents}
}

// Encode writes pitches with the default quarter-note spacing
func Encode(pitches []int, maxEvents int) ([]byte, error) {
	return NewMIDIEncoder(NoteTicks, maxEvents).Encode(pitches)
}

// Encode returns the complete file: header chunk, then one track chunk with a
// note-on/note-off pair per pitch and the end-of-track meta event.
func (e *MIDIEncoder) Encode(pitches []int) ([]byte, error) {
	if len(pitches) == 0 {
		return nil, ErrEmptySequence
	}

	// Format 0, one track, 96 ticks per quarter note, every status byte written
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	s.NoRunningStatus = true

	var track smf.Track
	for i, n := range NewPitchEvents(e.Truncate(pitches), e.noteTicks) {
		delta := uint32(0)
		if i > 0 {
			delta = e.noteTicks
		}
		track.Add(delta, midi.NoteOn(0, n.Pitch, n.VelocityOn))
		track.Add(n.DurationTicks, midi.NoteOffVelocity(0, n.Pitch, n.VelocityOff))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("%w: failed to add track: %w", ErrEncoding, err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: failed to write MIDI: %w", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Truncate returns the prefix of pitches that Encode writes
func (e *MIDIEncoder) Truncate(pitches []int) []int {
	if len(pitches) > e.maxEvents {
		return pitches[:e.maxEvents]
	}
	return pitches
}

// AppendVLQ appends v as a MIDI variable-length quantity: 7 data bits per
// byte, most significant group first, high bit set on all but the last byte.
func AppendVLQ(dst []byte, v uint32) ([]byte, error) {
	if v > maxVLQ {
		return dst, fmt.Errorf("%w: %d", ErrVLQOverflow, v)
	}
	return appendVLQ(dst, v), nil
}

func appendVLQ(dst []byte, v uint32) []byte {
	var tmp [4]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0 && i > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}

// Validate checks the chunk layout written by Encode: the fixed header, a
// track length field matching the remaining bytes and a closing end-of-track.
func Validate(data []byte) error {
	if len(data) < headerChunkSize+chunkHeaderSize+len(endOfTrack) {
		return fmt.Errorf("%w: file too short (%d bytes)", ErrEncoding, len(data))
	}
	if string(data[:4]) != "MThd" {
		return fmt.Errorf("%w: missing MThd", ErrEncoding)
	}
	if binary.BigEndian.Uint32(data[4:8]) != 6 {
		return fmt.Errorf("%w: header length is not 6", ErrEncoding)
	}
	if format := binary.BigEndian.Uint16(data[8:10]); format != 0 {
		return fmt.Errorf("%w: format %d, want 0", ErrEncoding, format)
	}
	if ntrks := binary.BigEndian.Uint16(data[10:12]); ntrks != 1 {
		return fmt.Errorf("%w: %d tracks, want 1", ErrEncoding, ntrks)
	}

	track := data[headerChunkSize:]
	if string(track[:4]) != "MTrk" {
		return fmt.Errorf("%w: missing MTrk", ErrEncoding)
	}
	length := binary.BigEndian.Uint32(track[4:8])
	if int(length) != len(track)-chunkHeaderSize {
		return fmt.Errorf("%w: track length %d, have %d bytes", ErrEncoding, length, len(track)-chunkHeaderSize)
	}
	if !bytes.HasSuffix(track, endOfTrack) {
		return fmt.Errorf("%w: missing end-of-track", ErrEncoding)
	}
	return nil
}

// NoteEvent is a note-on or note-off read back from a MIDI file
type NoteEvent struct {
	Tick     int64 `json:"tick"`
	Pitch    uint8 `json:"pitch"`
	Velocity uint8 `json:"velocity"`
	On       bool  `json:"on"`
}

// MIDIInfo describes a parsed Standard MIDI File
type MIDIInfo struct {
	Format     uint16      `json:"format"`
	Tracks     int         `json:"tracks"`
	Resolution uint16      `json:"resolution"`
	Events     []NoteEvent `json:"events"`
}

// Pitches returns the note-on pitches in order
func (i *MIDIInfo) Pitches() []int {
	var pitches []int
	for _, ev := range i.Events {
		if ev.On {
			pitches = append(pitches, int(ev.Pitch))
		}
	}
	return pitches
}

// Inspect parses MIDI data and lists its note events
func Inspect(data []byte) (*MIDIInfo, error) {
	if len(data) < headerChunkSize || string(data[:4]) != "MThd" {
		return nil, errors.New("not a MIDI file")
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	info := &MIDIInfo{
		Format: binary.BigEndian.Uint16(data[8:10]),
		Tracks: len(s.Tracks),
	}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		info.Resolution = mt.Resolution()
	}

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message
			if len(msg) < 3 {
				continue
			}
			status := msg[0] & 0xF0
			switch {
			case status == 0x90 && msg[2] > 0:
				info.Events = append(info.Events, NoteEvent{Tick: tick, Pitch: msg[1], Velocity: msg[2], On: true})
			case status == 0x80 || status == 0x90:
				info.Events = append(info.Events, NoteEvent{Tick: tick, Pitch: msg[1], Velocity: msg[2]})
			}
		}
	}
	return info, nil
}

// InspectFile reads and inspects a MIDI file
func InspectFile(filename string) (*MIDIInfo, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return Inspect(data)
}
