package contour

// Signal is an immutable buffer of audio samples plus a sample rate.
// The caller owns the buffer for the duration of one analysis call;
// nothing in this package mutates it.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Frame is one pitch observation. F0 is meaningful only when Voiced is
// true; unvoiced frames carry F0 == 0.
type Frame struct {
	T      float64 `json:"t"`   // frame start time in seconds
	F0     float64 `json:"f0"`  // fundamental frequency in Hz, 0 when unvoiced
	Voiced bool    `json:"voiced"`
	RMS    float64 `json:"rms"`
}

// Contour is a time-ascending, fixed-hop sequence of pitch frames over a
// signal range. Contours are immutable once extracted.
type Contour struct {
	Frames     []Frame `json:"frames"`
	SampleRate int     `json:"sample_rate"`
	HopSec     float64 `json:"hop_sec"`
}

// VoicedCount returns the number of voiced frames
func (c Contour) VoicedCount() int {
	count := 0
	for _, f := range c.Frames {
		if f.Voiced {
			count++
		}
	}
	return count
}

// VoicedPct returns the fraction of frames that are voiced, in [0, 1]
func (c Contour) VoicedPct() float64 {
	if len(c.Frames) == 0 {
		return 0
	}
	return float64(c.VoicedCount()) / float64(len(c.Frames))
}
