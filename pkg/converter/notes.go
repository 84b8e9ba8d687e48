package converter

import "math"

// Pitch mapping constants
const (
	BasePitch  = 60 // Middle C
	PitchRange = 24 // Two octaves above BasePitch
)

// MapToPitches maps each peak amplitude onto 60 + floor(peak*24), clamped to
// the MIDI range. An empty input returns the C major fallback triad so the
// encoder never sees an empty sequence.
func MapToPitches(peaks []float64) []int {
	if len(peaks) == 0 {
		return FallbackTriad()
	}
	pitches := make([]int, len(peaks))
	for i, p := range peaks {
		pitches[i] = peakToPitch(p)
	}
	return pitches
}

// FallbackTriad is used when analysis yields no peaks
func FallbackTriad() []int {
	return []int{60, 64, 67}
}

// FallbackScale is used when the audio cannot be decoded
func FallbackScale() []int {
	return []int{60, 62, 64, 65, 67, 69, 71, 72}
}

func peakToPitch(peak float64) int {
	if math.IsNaN(peak) {
		peak = 0
	}
	// clamp before converting so Inf and huge peaks cannot overflow int
	v := BasePitch + math.Floor(peak*PitchRange)
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	}
	return int(v)
}

func clampPitch(p int) uint8 {
	switch {
	case p < 0:
		return 0
	case p > 127:
		return 127
	}
	return uint8(p)
}
