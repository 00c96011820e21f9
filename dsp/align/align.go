package align

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
)

// Method names the strategy that produced an offset estimate.
type Method string

const (
	MethodXCorr Method = "xcorr" // normalized cross-correlation
	MethodOnset Method = "onset" // first-energy-rise fallback
	MethodNone  Method = "none"  // neither method found a usable signal
)

// Default tuning for offset estimation.
const (
	DefaultMaxOffsetMs = 1500.0
	// Minimum Pearson correlation for the xcorr result to be trusted.
	AcceptCorrelation = 0.5
	// Fraction of an envelope's own peak that counts as its onset.
	onsetPeakFraction = 0.4
	// Fewest overlapping envelope samples for a correlation to be defined.
	minOverlapSamples = 3
	// Smallest envelope dynamic range for a correlation to be meaningful.
	// Below this the overlap is quantization noise, not signal, and Pearson
	// r on it can come out arbitrarily high.
	minEnvelopeSpread = 1e-6
)

// Result is a temporal offset estimate between a reference and a
// candidate energy envelope. OffsetMs is positive when the candidate lags
// the reference and is always clamped to the search window.
type Result struct {
	OffsetMs    float64 `json:"offset_ms"`
	Method      Method  `json:"method"`
	Correlation float64 `json:"correlation"` // best Pearson r, xcorr only
}

// Estimator estimates the time offset between two fixed-step RMS
// envelopes. The primary method slides the candidate over a bounded lag
// window and keeps the lag maximizing Pearson correlation of the
// overlapping region; when no lag correlates convincingly it falls back
// to comparing energy-rise onsets.
type Estimator struct {
	maxOffsetMs float64
}

// NewEstimator creates an offset estimator with the default search window
func NewEstimator() *Estimator {
	return &Estimator{maxOffsetMs: DefaultMaxOffsetMs}
}

// NewEstimatorWithWindow creates an offset estimator with a custom search
// window in milliseconds. Non-positive values fall back to the default.
func NewEstimatorWithWindow(maxOffsetMs float64) *Estimator {
	e := NewEstimator()
	if maxOffsetMs > 0 {
		e.maxOffsetMs = maxOffsetMs
	}
	return e
}

// Estimate returns the offset of the candidate envelope relative to the
// reference. stepMs is the envelope step in milliseconds.
func (e *Estimator) Estimate(refEnv, candEnv []float64, stepMs float64) Result {
	if stepMs <= 0 || len(refEnv) == 0 || len(candEnv) == 0 {
		return Result{Method: MethodNone}
	}

	maxLag := int(e.maxOffsetMs / stepMs)

	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		r := lagCorrelation(refEnv, candEnv, lag)
		if r > bestCorr {
			bestCorr = r
			bestLag = lag
		}
	}

	if bestCorr > AcceptCorrelation {
		return Result{
			OffsetMs:    e.clamp(float64(bestLag) * stepMs),
			Method:      MethodXCorr,
			Correlation: bestCorr,
		}
	}

	// Fallback: compare the first index in each envelope crossing 40% of
	// its own peak.
	refOnset := onsetIndex(refEnv)
	candOnset := onsetIndex(candEnv)
	if refOnset >= 0 && candOnset >= 0 {
		return Result{
			OffsetMs: e.clamp(float64(candOnset-refOnset) * stepMs),
			Method:   MethodOnset,
		}
	}

	return Result{Method: MethodNone}
}

func (e *Estimator) clamp(offsetMs float64) float64 {
	return common.Clamp(offsetMs, -e.maxOffsetMs, e.maxOffsetMs)
}

// lagCorrelation computes the Pearson correlation of the overlapping
// region when cand is shifted by lag steps relative to ref. Overlaps
// shorter than the minimum or with near-constant envelopes are defined
// as zero correlation.
func lagCorrelation(ref, cand []float64, lag int) float64 {
	// Positive lag means the candidate starts later than the reference.
	var refStart, candStart int
	if lag >= 0 {
		candStart = lag
	} else {
		refStart = -lag
	}

	n := min(len(ref)-refStart, len(cand)-candStart)
	if n < minOverlapSamples {
		return 0
	}

	refWin := ref[refStart : refStart+n]
	candWin := cand[candStart : candStart+n]
	if spread(refWin) < minEnvelopeSpread || spread(candWin) < minEnvelopeSpread {
		return 0
	}

	return common.Correlation(refWin, candWin)
}

func spread(env []float64) float64 {
	lo, hi := common.MinMax(env)
	return hi - lo
}

// onsetIndex returns the first index crossing 40% of the envelope's own
// peak, or -1 when the envelope has no energy at all.
func onsetIndex(env []float64) int {
	peak := 0.0
	for _, v := range env {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return -1
	}

	threshold := peak * onsetPeakFraction
	for i, v := range env {
		if v >= threshold {
			return i
		}
	}
	return -1
}
