package pitch

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
)

// Estimator detects the fundamental frequency of a single audio frame
// using time-domain normalized autocorrelation with parabolic peak
// refinement. It is a period detector, not a spectral one: the decision
// order below (energy gate, silence trim, first-local-minimum walk,
// global maximum, interpolation) is part of the contract, since near-equal
// correlation peaks resolve to the first one found after the first local
// minimum.
//
// References:
// - Rabiner, L. (1977). "On the Use of Autocorrelation Analysis for Pitch Detection"
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator"
type Estimator struct {
	voicedRMSFloor float64 // frames quieter than this are unvoiced
	clipThreshold  float64 // |sample| below this counts as silence when trimming
}

// DefaultVoicedRMSFloor is the RMS level below which a frame is treated as
// unvoiced without running autocorrelation.
const DefaultVoicedRMSFloor = 0.01

// DefaultClipThreshold is the absolute sample level used when trimming
// leading/trailing silence from a frame.
const DefaultClipThreshold = 0.01

// NewEstimator creates a pitch estimator with default thresholds
func NewEstimator() *Estimator {
	return &Estimator{
		voicedRMSFloor: DefaultVoicedRMSFloor,
		clipThreshold:  DefaultClipThreshold,
	}
}

// NewEstimatorWithThresholds creates a pitch estimator with custom energy
// gates. Non-positive values fall back to the defaults.
func NewEstimatorWithThresholds(voicedRMSFloor, clipThreshold float64) *Estimator {
	e := NewEstimator()
	if voicedRMSFloor > 0 {
		e.voicedRMSFloor = voicedRMSFloor
	}
	if clipThreshold > 0 {
		e.clipThreshold = clipThreshold
	}
	return e
}

// Estimate returns the fundamental frequency of the frame in Hz, or 0 when
// the frame is unvoiced or no period could be detected.
func (e *Estimator) Estimate(frame []float64, sampleRate int) float64 {
	if len(frame) == 0 || sampleRate <= 0 {
		return 0
	}

	// Silence short-circuit: quiet frames never reach autocorrelation.
	if common.RMS(frame) < e.voicedRMSFloor {
		return 0
	}

	trimmed := e.trimSilence(frame)
	n := len(trimmed)
	if n < 2 {
		return 0
	}

	corr := autocorrelate(trimmed)

	// Skip the zero-lag peak: walk forward while the correlation is
	// monotonically decreasing to find the first local minimum.
	d := 0
	for d < n-1 && corr[d] > corr[d+1] {
		d++
	}
	if d == 0 || d >= n-1 {
		return 0
	}

	// Global maximum at or beyond the first local minimum.
	peakLag := -1
	peakVal := math.Inf(-1)
	for lag := d; lag < n; lag++ {
		if corr[lag] > peakVal {
			peakVal = corr[lag]
			peakLag = lag
		}
	}
	if peakLag <= 0 {
		return 0
	}

	refined := refinePeak(corr, peakLag)
	if refined <= 0 {
		return 0
	}

	return float64(sampleRate) / refined
}

// trimSilence drops leading and trailing runs where |sample| stays below
// the clip threshold.
func (e *Estimator) trimSilence(frame []float64) []float64 {
	start := 0
	for start < len(frame) && math.Abs(frame[start]) < e.clipThreshold {
		start++
	}

	end := len(frame)
	for end > start && math.Abs(frame[end-1]) < e.clipThreshold {
		end--
	}

	return frame[start:end]
}

// autocorrelate computes the normalized autocorrelation of x for every lag
// from 0 to len(x)-1, normalized by the zero-lag energy.
func autocorrelate(x []float64) []float64 {
	n := len(x)
	corr := make([]float64, n)

	energy := 0.0
	for _, v := range x {
		energy += v * v
	}
	if energy == 0 {
		return corr
	}

	for lag := 0; lag < n; lag++ {
		sum := 0.0
		for i := 0; i < n-lag; i++ {
			sum += x[i] * x[i+lag]
		}
		corr[lag] = sum / energy
	}

	return corr
}

// refinePeak applies parabolic interpolation over the three correlation
// samples centered on the peak lag and returns the refined (fractional)
// lag. Falls back to the integer lag at the array edges or when the
// parabola degenerates.
func refinePeak(corr []float64, peakLag int) float64 {
	if peakLag <= 0 || peakLag >= len(corr)-1 {
		return float64(peakLag)
	}

	x1 := corr[peakLag-1]
	x2 := corr[peakLag]
	x3 := corr[peakLag+1]

	a := (x1 + x3 - 2*x2) / 2
	b := (x3 - x1) / 2
	if a == 0 {
		return float64(peakLag)
	}

	return float64(peakLag) - b/(2*a)
}
