package converter

import "math"

// Peak extraction defaults
const (
	DefaultMaxWindows = 16
	DefaultThreshold  = 0.1
)

// PeakWindow is one scanned window of the buffer
type PeakWindow struct {
	Start int
	End   int
	Peak  float64
}

// ExtractPeaks splits the buffer into windows of len/maxWindows samples and
// returns the absolute peak of every window louder than threshold, in order.
//
// Selection is greedy: scanning stops once maxWindows peaks are kept, so this
// is not a global top-k search. The output of earlier releases depends on that
// approximation and it is kept on purpose.
func ExtractPeaks(buf SampleBuffer, maxWindows int, threshold float64) []float64 {
	if maxWindows <= 0 {
		return []float64{}
	}
	windows := scanWindows(buf.Samples, maxWindows)
	peaks := make([]float64, 0, maxWindows)
	for _, w := range windows {
		if len(peaks) >= maxWindows {
			break
		}
		if w.Peak > threshold {
			peaks = append(peaks, w.Peak)
		}
	}
	return peaks
}

func scanWindows(samples []float64, maxWindows int) []PeakWindow {
	if maxWindows <= 0 || len(samples) == 0 {
		return nil
	}
	size := len(samples) / maxWindows
	if size < 1 {
		size = 1
	}

	windows := make([]PeakWindow, 0, maxWindows+1)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		windows = append(windows, PeakWindow{
			Start: start,
			End:   end,
			Peak:  absPeak(samples[start:end]),
		})
	}
	return windows
}

func absPeak(samples []float64) float64 {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
